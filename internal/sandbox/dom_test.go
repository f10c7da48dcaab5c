package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDOMAppendAndRemove(t *testing.T) {
	dom := NewDOM()
	parent := dom.CreateElement("div")
	child := dom.CreateElement("span")

	require.NoError(t, dom.AppendChild(dom.Body(), parent))
	require.NoError(t, dom.AppendChild(parent, child))
	assert.Same(t, parent, dom.Parent(child))
	assert.Len(t, dom.Children(parent), 1)

	assert.ErrorIs(t, dom.AppendChild(child, parent), ErrHierarchy)
	assert.ErrorIs(t, dom.RemoveChild(dom.Body(), child), ErrNotChild)

	require.NoError(t, dom.RemoveChild(parent, child))
	assert.Nil(t, dom.Parent(child))
	assert.Empty(t, dom.Children(parent))
}

func TestDOMAppendMovesNode(t *testing.T) {
	dom := NewDOM()
	a := dom.CreateElement("div")
	b := dom.CreateElement("div")
	child := dom.CreateElement("p")

	require.NoError(t, dom.AppendChild(a, child))
	require.NoError(t, dom.AppendChild(b, child))

	assert.Empty(t, dom.Children(a))
	assert.Equal(t, []*Element{child}, dom.Children(b))
}

func TestDOMTextNodesHaveNoChildren(t *testing.T) {
	dom := NewDOM()
	text := dom.CreateText("hi")
	assert.ErrorIs(t, dom.AppendChild(text, dom.CreateElement("b")), ErrTextNode)
}

func TestDOMAttributes(t *testing.T) {
	dom := NewDOM()
	el := dom.CreateElement("DIV")
	assert.Equal(t, "div", el.TagName)

	dom.SetAttribute(el, "id", "main")
	dom.SetAttribute(el, "class", "a b")
	dom.SetAttribute(el, "Data-X", "1")

	assert.Equal(t, "main", el.ID)
	assert.Equal(t, "a b", el.ClassName)
	v, ok := dom.GetAttribute(el, "data-x")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	dom.RemoveAttribute(el, "id")
	assert.Equal(t, "", el.ID)
	_, ok = dom.GetAttribute(el, "id")
	assert.False(t, ok)
}

func TestDOMSerialisation(t *testing.T) {
	dom := NewDOM()
	root := dom.CreateElement("div")
	require.NoError(t, dom.AppendChild(dom.Body(), root))

	p := dom.CreateElement("p")
	dom.SetAttribute(p, "title", "x")
	dom.SetAttribute(p, "class", "note")
	require.NoError(t, dom.AppendChild(root, p))
	require.NoError(t, dom.AppendChild(p, dom.CreateText("a < b & c")))

	assert.Equal(t, `<p class="note" title="x">a &lt; b &amp; c</p>`, dom.InnerHTML(root))
	assert.Equal(t, "a < b & c", dom.TextContent(root))
}

func TestDOMSetText(t *testing.T) {
	dom := NewDOM()
	el := dom.CreateElement("div")
	require.NoError(t, dom.AppendChild(el, dom.CreateElement("span")))

	dom.SetText(el, "plain")
	assert.Equal(t, "plain", dom.InnerHTML(el))

	dom.SetText(el, "")
	assert.Empty(t, dom.Children(el))
}

func TestDOMSetInnerHTML(t *testing.T) {
	dom := NewDOM()
	el := dom.CreateElement("div")
	require.NoError(t, dom.AppendChild(dom.Body(), el))

	require.NoError(t, dom.SetInnerHTML(el, `<ul id="list"><li class="item">one</li><li class="item done">two</li></ul>`))

	assert.Equal(t, `<ul id="list"><li class="item">one</li><li class="item done">two</li></ul>`, dom.InnerHTML(el))
	assert.NotNil(t, dom.GetElementByID("list"))
	assert.Len(t, dom.Query(".item"), 2)
	assert.Len(t, dom.Query(".done"), 1)
	assert.Len(t, dom.Query("li"), 2)
	assert.Equal(t, "onetwo", dom.TextContent(el))
}

func TestDOMQueryIn(t *testing.T) {
	dom := NewDOM()
	a := dom.CreateElement("section")
	b := dom.CreateElement("section")
	require.NoError(t, dom.AppendChild(dom.Body(), a))
	require.NoError(t, dom.AppendChild(dom.Body(), b))
	require.NoError(t, dom.SetInnerHTML(a, `<p>a</p>`))
	require.NoError(t, dom.SetInnerHTML(b, `<p>b</p><p>c</p>`))

	assert.Len(t, dom.QueryIn(a, "p"), 1)
	assert.Len(t, dom.QueryIn(b, "p"), 2)
	assert.Len(t, dom.Query("p"), 3)
	assert.Empty(t, dom.Query("#missing"))
	assert.Empty(t, dom.Query(""))
}

func TestDOMChanges(t *testing.T) {
	dom := NewDOM()
	el := dom.CreateElement("div")
	dom.SetAttribute(el, "id", "box")
	require.NoError(t, dom.AppendChild(dom.Body(), el))

	changes := dom.GetChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, DOMChange{Type: "set_attribute", Selector: "#box", Property: "id", Value: "box"}, changes[0])
	assert.Equal(t, DOMChange{Type: "append", Selector: "body", Value: "#box"}, changes[1])

	dom.ResetChanges()
	assert.Empty(t, dom.GetChanges())
}
