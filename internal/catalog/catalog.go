package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/saintfish/chardet"
)

//go:embed data
var embedded embed.FS

// Pattern selects catalog files inside a catalog directory
const Pattern = "**/*.{yaml,yml,toml}"

// DefaultStarter is the playground source of a question without its own starter
const DefaultStarter = "// Write your solution here\n// console.log('Hello World!');\n"

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate id")
	ErrInvalid   = errors.New("invalid catalog file")
)

// QuestionType distinguishes discussion questions from coding challenges
type QuestionType string

const (
	Theoretical QuestionType = "theoretical"
	Coding      QuestionType = "coding"
)

// Question is one interview question
type Question struct {
	ID       string       `yaml:"id" toml:"id" json:"id"`
	Type     QuestionType `yaml:"type" toml:"type" json:"type"`
	Question string       `yaml:"question" toml:"question" json:"question"`
	Answer   string       `yaml:"answer" toml:"answer" json:"answer"`
	Language string       `yaml:"language" toml:"language" json:"language,omitempty"`
	Starter  string       `yaml:"starter" toml:"starter" json:"starter,omitempty"`
}

// Topic groups questions of a path
type Topic struct {
	ID        string     `yaml:"id" toml:"id" json:"id"`
	Title     string     `yaml:"title" toml:"title" json:"title"`
	Questions []Question `yaml:"questions" toml:"questions" json:"questions"`
}

// LearningPath is one subject with its topics
type LearningPath struct {
	ID          string  `yaml:"id" toml:"id" json:"id"`
	Title       string  `yaml:"title" toml:"title" json:"title"`
	Description string  `yaml:"description" toml:"description" json:"description"`
	Icon        string  `yaml:"icon" toml:"icon" json:"icon"`
	Topics      []Topic `yaml:"topics" toml:"topics" json:"topics"`
}

// Catalog is the read-only question bank
type Catalog struct {
	paths     []LearningPath
	byPath    map[string]int
	questions map[string]Question
	coding    []Question
}

var (
	defaultCatalog *Catalog
	defaultOnce    sync.Once
)

// Default returns the embedded catalog
func Default() *Catalog {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err == nil {
			defaultCatalog, err = LoadFS(sub)
		}
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
	})
	return defaultCatalog
}

// Load reads every catalog file under dir. An empty dir returns the
// embedded catalog.
func Load(dir string) (*Catalog, error) {
	if dir == "" {
		return Default(), nil
	}

	var mu sync.Mutex
	var files []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(Pattern, filepath.ToSlash(rel)); ok {
			mu.Lock()
			files = append(files, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog dir %s: %w", dir, err)
	}
	sort.Strings(files)

	paths := make([]LearningPath, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		p, err := decode(file, data)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return build(paths)
}

// LoadFS reads every catalog file of fsys
func LoadFS(fsys fs.FS) (*Catalog, error) {
	files, err := doublestar.Glob(fsys, Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalog: %w", err)
	}
	sort.Strings(files)

	paths := make([]LearningPath, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		p, err := decode(file, data)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return build(paths)
}

// decode parses one learning path; the extension selects the format
func decode(name string, data []byte) (LearningPath, error) {
	var p LearningPath
	if !utf8.Valid(data) {
		charset := "unknown"
		if res, err := chardet.NewTextDetector().DetectBest(data); err == nil {
			charset = res.Charset
		}
		return p, fmt.Errorf("%w: %s is not UTF-8 (detected %s)", ErrInvalid, name, charset)
	}

	var err error
	switch strings.ToLower(path.Ext(filepath.ToSlash(name))) {
	case ".toml":
		err = toml.Unmarshal(data, &p)
	default:
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("%w: %s: missing path id", ErrInvalid, name)
	}
	return p, nil
}

func build(paths []LearningPath) (*Catalog, error) {
	c := &Catalog{
		paths:     paths,
		byPath:    make(map[string]int, len(paths)),
		questions: make(map[string]Question),
	}
	for i, p := range paths {
		if _, dup := c.byPath[p.ID]; dup {
			return nil, fmt.Errorf("%w: path %q", ErrDuplicate, p.ID)
		}
		c.byPath[p.ID] = i

		for _, t := range p.Topics {
			for _, q := range t.Questions {
				if q.ID == "" {
					return nil, fmt.Errorf("%w: question without id in %s/%s", ErrInvalid, p.ID, t.ID)
				}
				if _, dup := c.questions[q.ID]; dup {
					return nil, fmt.Errorf("%w: question %q", ErrDuplicate, q.ID)
				}
				switch q.Type {
				case Theoretical, Coding:
				default:
					return nil, fmt.Errorf("%w: question %q has type %q", ErrInvalid, q.ID, q.Type)
				}
				c.questions[q.ID] = q
				if q.Type == Coding {
					c.coding = append(c.coding, q)
				}
			}
		}
	}
	return c, nil
}

// Paths returns every learning path in load order
func (c *Catalog) Paths() []LearningPath {
	return append([]LearningPath{}, c.paths...)
}

// Path returns a learning path by id
func (c *Catalog) Path(id string) (LearningPath, error) {
	i, ok := c.byPath[id]
	if !ok {
		return LearningPath{}, fmt.Errorf("path %q: %w", id, ErrNotFound)
	}
	return c.paths[i], nil
}

// Question returns a question by id
func (c *Catalog) Question(id string) (Question, error) {
	q, ok := c.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %q: %w", id, ErrNotFound)
	}
	return q, nil
}

// CodingChallenges returns every coding question across all paths
func (c *Catalog) CodingChallenges() []Question {
	return append([]Question{}, c.coding...)
}

// Starter returns the initial playground source of a question and the mode
// its declared language implies.
func (c *Catalog) Starter(questionID string) (string, sandbox.Mode, error) {
	q, err := c.Question(questionID)
	if err != nil {
		return "", sandbox.ModeAuto, err
	}
	source := q.Starter
	if source == "" {
		source = DefaultStarter
	}
	return source, sandbox.ModeForLanguage(q.Language), nil
}
