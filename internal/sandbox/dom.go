package sandbox

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrHierarchy = errors.New("the new child element contains the parent")
	ErrNotChild  = errors.New("the node to be removed is not a child of this node")
	ErrTextNode  = errors.New("text nodes cannot have children")
)

// NodeType distinguishes element nodes from text nodes
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// DOMChange represents a DOM modification
type DOMChange struct {
	Type     string // append, remove, clear, set_attribute, remove_attribute, set_text, set_html
	Selector string // #id or tag of the modified node
	Property string // Attribute name for set_attribute
	Value    string // New value
}

// DOM is a small document tree owned by one playground. Every mutation goes
// through DOM methods so the tree can be read concurrently for snapshots.
type DOM struct {
	root    *Element
	body    *Element
	changes []DOMChange
	mu      sync.RWMutex
}

// Element represents a DOM element or text node
type Element struct {
	Type       NodeType
	TagName    string
	ID         string
	ClassName  string
	Data       string // Text of a TextNode
	Attributes map[string]string
	Children   []*Element
	Parent     *Element
}

// NewDOM creates a document with an empty body
func NewDOM() *DOM {
	root := newElement("document")
	body := newElement("body")
	body.Parent = root
	root.Children = append(root.Children, body)

	return &DOM{
		root:    root,
		body:    body,
		changes: []DOMChange{},
	}
}

func newElement(tag string) *Element {
	return &Element{
		Type:       ElementNode,
		TagName:    strings.ToLower(tag),
		Attributes: make(map[string]string),
		Children:   []*Element{},
	}
}

// Body returns the document body
func (d *DOM) Body() *Element {
	return d.body
}

// CreateElement creates a detached element
func (d *DOM) CreateElement(tag string) *Element {
	return newElement(tag)
}

// CreateText creates a detached text node
func (d *DOM) CreateText(data string) *Element {
	return &Element{Type: TextNode, Data: data, Attributes: map[string]string{}}
}

// AppendChild moves child to the end of parent's children
func (d *DOM) AppendChild(parent, child *Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if parent.Type == TextNode {
		return ErrTextNode
	}
	if contains(child, parent) {
		return ErrHierarchy
	}
	detach(child)
	child.Parent = parent
	parent.Children = append(parent.Children, child)
	d.recordLocked(DOMChange{Type: "append", Selector: selectorOf(parent), Value: selectorOf(child)})
	return nil
}

// RemoveChild detaches child from parent
func (d *DOM) RemoveChild(parent, child *Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if child.Parent != parent {
		return ErrNotChild
	}
	detach(child)
	d.recordLocked(DOMChange{Type: "remove", Selector: selectorOf(parent), Value: selectorOf(child)})
	return nil
}

// Clear removes every child of elem
func (d *DOM) Clear(elem *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, child := range elem.Children {
		child.Parent = nil
	}
	elem.Children = []*Element{}
	d.recordLocked(DOMChange{Type: "clear", Selector: selectorOf(elem)})
}

// SetAttribute sets an attribute; id and class keep the ID/ClassName fields in sync
func (d *DOM) SetAttribute(elem *Element, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = strings.ToLower(name)
	elem.Attributes[name] = value
	switch name {
	case "id":
		elem.ID = value
	case "class":
		elem.ClassName = value
	}
	d.recordLocked(DOMChange{Type: "set_attribute", Selector: selectorOf(elem), Property: name, Value: value})
}

// GetAttribute returns an attribute value
func (d *DOM) GetAttribute(elem *Element, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	v, ok := elem.Attributes[strings.ToLower(name)]
	return v, ok
}

// RemoveAttribute deletes an attribute
func (d *DOM) RemoveAttribute(elem *Element, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name = strings.ToLower(name)
	delete(elem.Attributes, name)
	switch name {
	case "id":
		elem.ID = ""
	case "class":
		elem.ClassName = ""
	}
	d.recordLocked(DOMChange{Type: "remove_attribute", Selector: selectorOf(elem), Property: name})
}

// Parent returns the parent of elem, or nil when detached
func (d *DOM) Parent(elem *Element) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return elem.Parent
}

// Children returns a copy of elem's child list
func (d *DOM) Children(elem *Element) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Element{}, elem.Children...)
}

// SetText replaces the children of elem with a single text node
func (d *DOM) SetText(elem *Element, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if elem.Type == TextNode {
		elem.Data = text
	} else {
		for _, child := range elem.Children {
			child.Parent = nil
		}
		elem.Children = []*Element{}
		if text != "" {
			elem.Children = append(elem.Children, &Element{Type: TextNode, Data: text, Parent: elem, Attributes: map[string]string{}})
		}
	}
	d.recordLocked(DOMChange{Type: "set_text", Selector: selectorOf(elem), Value: text})
}

// TextContent returns the concatenated text of elem's subtree
func (d *DOM) TextContent(elem *Element) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var b strings.Builder
	writeText(&b, elem)
	return b.String()
}

func writeText(b *strings.Builder, elem *Element) {
	if elem.Type == TextNode {
		b.WriteString(elem.Data)
		return
	}
	for _, child := range elem.Children {
		writeText(b, child)
	}
}

// SetInnerHTML parses markup and replaces elem's children with the result
func (d *DOM) SetInnerHTML(elem *Element, markup string) error {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if elem.Type == TextNode {
		return ErrTextNode
	}
	for _, child := range elem.Children {
		child.Parent = nil
	}
	elem.Children = []*Element{}
	for _, n := range nodes {
		if child := fromNode(n); child != nil {
			child.Parent = elem
			elem.Children = append(elem.Children, child)
		}
	}
	d.recordLocked(DOMChange{Type: "set_html", Selector: selectorOf(elem), Value: markup})
	return nil
}

// InnerHTML serialises the children of elem
func (d *DOM) InnerHTML(elem *Element) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf bytes.Buffer
	for _, child := range elem.Children {
		_ = html.Render(&buf, toNode(child))
	}
	return buf.String()
}

// Query finds elements by selector (simplified)
func (d *DOM) Query(selector string) []*Element {
	return d.QueryIn(d.root, selector)
}

// QueryIn finds elements under scope by #id, .class or tag selector
func (d *DOM) QueryIn(scope *Element, selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	selector = strings.TrimSpace(selector)
	switch {
	case strings.HasPrefix(selector, "#"):
		if elem := findByID(scope, strings.TrimPrefix(selector, "#")); elem != nil {
			return []*Element{elem}
		}
		return []*Element{}
	case strings.HasPrefix(selector, "."):
		return findByClass(scope, strings.TrimPrefix(selector, "."))
	case selector == "":
		return []*Element{}
	default:
		return findByTag(scope, selector)
	}
}

// GetElementByID finds an element anywhere in the document
func (d *DOM) GetElementByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return findByID(d.root, id)
}

// GetChanges returns accumulated DOM changes
func (d *DOM) GetChanges() []DOMChange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]DOMChange{}, d.changes...)
}

// ResetChanges drops the change journal
func (d *DOM) ResetChanges() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = []DOMChange{}
}

func (d *DOM) recordLocked(change DOMChange) {
	d.changes = append(d.changes, change)
}

// Helpers. Callers hold d.mu.

func contains(ancestor, elem *Element) bool {
	for e := elem; e != nil; e = e.Parent {
		if e == ancestor {
			return true
		}
	}
	return false
}

func detach(elem *Element) {
	if elem.Parent == nil {
		return
	}
	children := make([]*Element, 0, len(elem.Parent.Children))
	for _, child := range elem.Parent.Children {
		if child != elem {
			children = append(children, child)
		}
	}
	elem.Parent.Children = children
	elem.Parent = nil
}

func selectorOf(elem *Element) string {
	switch {
	case elem.Type == TextNode:
		return "#text"
	case elem.ID != "":
		return "#" + elem.ID
	default:
		return elem.TagName
	}
}

func findByID(elem *Element, id string) *Element {
	if elem.Type == ElementNode && elem.ID == id && id != "" {
		return elem
	}
	for _, child := range elem.Children {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(elem *Element, class string) []*Element {
	var result []*Element
	if elem.Type == ElementNode && hasClass(elem.ClassName, class) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, findByClass(child, class)...)
	}
	return result
}

func hasClass(classes, class string) bool {
	for _, c := range strings.Fields(classes) {
		if c == class {
			return true
		}
	}
	return false
}

func findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if elem.Type == ElementNode && strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, findByTag(child, tag)...)
	}
	return result
}

func toNode(elem *Element) *html.Node {
	if elem.Type == TextNode {
		return &html.Node{Type: html.TextNode, Data: elem.Data}
	}

	n := &html.Node{
		Type:     html.ElementNode,
		Data:     elem.TagName,
		DataAtom: atom.Lookup([]byte(elem.TagName)),
	}
	keys := make([]string, 0, len(elem.Attributes))
	for k := range elem.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: elem.Attributes[k]})
	}
	for _, child := range elem.Children {
		n.AppendChild(toNode(child))
	}
	return n
}

func fromNode(n *html.Node) *Element {
	switch n.Type {
	case html.TextNode:
		return &Element{Type: TextNode, Data: n.Data, Attributes: map[string]string{}}
	case html.ElementNode:
		elem := newElement(n.Data)
		for _, attr := range n.Attr {
			elem.Attributes[attr.Key] = attr.Val
			switch attr.Key {
			case "id":
				elem.ID = attr.Val
			case "class":
				elem.ClassName = attr.Val
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child := fromNode(c); child != nil {
				child.Parent = elem
				elem.Children = append(elem.Children, child)
			}
		}
		return elem
	default:
		return nil
	}
}
