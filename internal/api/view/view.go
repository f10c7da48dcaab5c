// Package view shapes playground state for API clients.
package view

import (
	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/microcosm-cc/bluemonday"
)

// Policy returns the sanitiser applied to rendered playground HTML. It
// keeps the markup a component can produce and drops anything that could
// run in the viewer's browser.
func Policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("div", "span", "section", "article", "main", "header", "footer", "nav",
		"button", "label", "input", "textarea", "select", "option", "form")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("type", "value", "placeholder", "checked", "disabled", "name").
		OnElements("input", "button", "textarea", "select", "option")
	p.AllowAttrs("for").OnElements("label")
	p.AllowStyles("color", "background-color", "font-size", "font-weight", "font-style",
		"text-align", "text-decoration", "margin", "padding", "display", "opacity", "width", "height").
		Globally()
	return p
}

// Snapshot returns s with its HTML sanitised by p
func Snapshot(p *bluemonday.Policy, s playground.Snapshot) playground.Snapshot {
	s.HTML = p.Sanitize(s.HTML)
	return s
}

// Snapshots sanitises every snapshot of ps
func Snapshots(p *bluemonday.Policy, ps []*playground.Playground) []playground.Snapshot {
	out := make([]playground.Snapshot, 0, len(ps))
	for _, pg := range ps {
		out = append(out, Snapshot(p, pg.Snapshot()))
	}
	return out
}
