package sandbox

import (
	"sync"

	"github.com/GriffinCanCode/CodePrep/backend/internal/shared/id"
)

// Unmounter is a UI root mounted somewhere in a target's document
type Unmounter interface {
	Unmount()
}

// Target is the render target of one playground: a private document whose
// body holds a single mount element with a process-unique id.
type Target struct {
	id    id.MountID
	dom   *DOM
	mount *Element

	mu    sync.Mutex
	roots []Unmounter
}

// NewTarget allocates a mount id and builds document > body > div#id
func NewTarget() *Target {
	mountID := id.NewMountID()
	dom := NewDOM()
	mount := dom.CreateElement("div")
	dom.SetAttribute(mount, "id", string(mountID))
	_ = dom.AppendChild(dom.Body(), mount)
	dom.ResetChanges()

	return &Target{
		id:    mountID,
		dom:   dom,
		mount: mount,
	}
}

// ID returns the mount element id
func (t *Target) ID() string {
	return string(t.id)
}

// Element returns the mount element
func (t *Target) Element() *Element {
	return t.mount
}

// DOM returns the target's private document
func (t *Target) DOM() *DOM {
	return t.dom
}

// Track registers a mounted UI root so Clear can unmount it
func (t *Target) Track(root Unmounter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roots = append(t.roots, root)
}

// Untrack forgets a root that unmounted itself
func (t *Target) Untrack(root Unmounter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.roots {
		if r == root {
			t.roots = append(t.roots[:i], t.roots[i+1:]...)
			return
		}
	}
}

// Roots returns the number of mounted UI roots
func (t *Target) Roots() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roots)
}

// Clear unmounts every root, running effect cleanups, and then restores the
// document to an empty mount element. The execution that owns the roots
// must not be running.
func (t *Target) Clear() {
	t.mu.Lock()
	roots := t.roots
	t.roots = nil
	t.mu.Unlock()

	for _, r := range roots {
		r.Unmount()
	}

	body := t.dom.Body()
	for _, child := range t.dom.Children(body) {
		if child != t.mount {
			_ = t.dom.RemoveChild(body, child)
		}
	}
	if t.dom.Parent(t.mount) != body {
		_ = t.dom.AppendChild(body, t.mount)
	}
	t.dom.Clear(t.mount)
	t.dom.ResetChanges()
}

// HTML serialises the mount element's contents
func (t *Target) HTML() string {
	return t.dom.InnerHTML(t.mount)
}

// Text returns the text content of the mount element
func (t *Target) Text() string {
	return t.dom.TextContent(t.mount)
}

// Query finds elements inside the mount element
func (t *Target) Query(selector string) []*Element {
	return t.dom.QueryIn(t.mount, selector)
}

// Close releases the target; it is cleared and must not be used afterwards
func (t *Target) Close() {
	t.Clear()
}
