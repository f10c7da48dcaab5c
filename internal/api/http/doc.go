// Package http exposes playgrounds, the question catalog, progress and the
// tutor over a gin router.
//
// Playground endpoints answer with snapshots whose html field has been run
// through the view sanitiser. A run whose user code faults still answers
// 200: the fault is part of the snapshot, not a transport error.
package http
