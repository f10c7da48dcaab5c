package progress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// File is a Store persisted as one JSON document mapping learners to their
// completed question ids. Paths ending in .gz or .zst are compressed.
// Every mutation rewrites the file through a temp file and a rename.
type File struct {
	path string

	mu       sync.Mutex
	learners map[string]map[string]bool
}

// OpenFile loads path, creating an empty store when it does not exist
func OpenFile(path string) (*File, error) {
	f := &File{path: path, learners: make(map[string]map[string]bool)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	raw, err := decompress(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress progress file: %w", err)
	}
	var doc map[string][]string
	if len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse progress file: %w", err)
		}
	}
	for learner, ids := range doc {
		for _, id := range ids {
			mark(f.learners, learner, id, true)
		}
	}
	return f, nil
}

// Path returns the backing file path
func (f *File) Path() string {
	return f.path
}

func (f *File) Completed(_ context.Context, learner string) ([]string, error) {
	if err := validate(learner); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return sorted(f.learners[learner]), nil
}

func (f *File) Mark(_ context.Context, learner, questionID string, done bool) error {
	if err := validate(learner, questionID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update(learner, func() { mark(f.learners, learner, questionID, done) })
}

func (f *File) Reset(_ context.Context, learner string) error {
	if err := validate(learner); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update(learner, func() { delete(f.learners, learner) })
}

func (f *File) Close() error { return nil }

// update applies change to learner's set and persists it. A failed save
// puts the set back, so memory never runs ahead of the file. Callers hold f.mu.
func (f *File) update(learner string, change func()) error {
	prev, had := f.learners[learner]
	backup := make(map[string]bool, len(prev))
	for id := range prev {
		backup[id] = true
	}

	change()
	if err := f.save(); err != nil {
		if had {
			f.learners[learner] = backup
		} else {
			delete(f.learners, learner)
		}
		return err
	}
	return nil
}

// save writes the document; callers hold f.mu
func (f *File) save() error {
	doc := make(map[string][]string, len(f.learners))
	for learner, set := range f.learners {
		doc[learner] = sorted(set)
	}
	raw, err := sonic.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	data, err := compress(f.path, raw)
	if err != nil {
		return fmt.Errorf("failed to compress progress: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create progress dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".progress-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write progress: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace progress file: %w", err)
	}
	return nil
}

func compress(path string, raw []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	default:
		return raw, nil
	}
}

func decompress(path string, data []byte) ([]byte, error) {
	switch {
	case strings.HasSuffix(path, ".gz"):
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)
	default:
		return data, nil
	}
}
