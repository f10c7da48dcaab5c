package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// renderDoc parses the target's mount contents for inspection
func renderDoc(t *testing.T, target *Target) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(target.HTML()))
	require.NoError(t, err)
	return doc
}

// runUI transforms source as UI code and runs it to completion
func runUI(t *testing.T, source string) runResult {
	t.Helper()
	script, err := NewTransformer().Transform(source, ModeUI)
	require.NoError(t, err)
	return runScript(t, testConfig(), script)
}

func TestReactCreateElementRender(t *testing.T) {
	res := runScript(t, testConfig(), `
		const root = ReactDOM.createRoot(mountNode);
		root.render(React.createElement("div", { className: "box", id: "x" },
			"Hello ", React.createElement("b", null, "world")));
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, `<div class="box" id="x">Hello <b>world</b></div>`, res.target.HTML())
	assert.Equal(t, 1, res.target.Roots())
}

func TestReactJSXList(t *testing.T) {
	res := runUI(t, `
		function App({ items }) {
			return (
				<ul className="todos">
					{items.map(item => <li key={item.id} className={item.done ? "done" : ""}>{item.text}</li>)}
				</ul>
			);
		}
		ReactDOM.render(<App items={[
			{ id: 1, text: "write", done: true },
			{ id: 2, text: "test", done: false },
			{ id: 3, text: "ship", done: false },
		]} />, mountNode);
	`)

	require.Nil(t, res.exec.Fault())
	doc := renderDoc(t, res.target)
	assert.Equal(t, 3, doc.Find("ul.todos li").Length())
	assert.Equal(t, "write", doc.Find("li.done").Text())
	assert.Equal(t, "writetestship", doc.Find("ul").Text())
}

func TestReactFragmentsAndConditionals(t *testing.T) {
	res := runUI(t, `
		const show = false;
		ReactDOM.createRoot(mountNode).render(
			<>
				<i>a</i>
				{show && <b>hidden</b>}
				{null}
				{"b"}
				{42}
			</>
		);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, "<i>a</i>b42", res.target.HTML())
}

func TestReactProps(t *testing.T) {
	res := runUI(t, `
		ReactDOM.createRoot(mountNode).render(
			<label htmlFor="name" style={{ color: "red", fontSize: 12, opacity: 0.5 }} disabled={true} hidden={false}>
				Name
			</label>
		);
	`)

	require.Nil(t, res.exec.Fault())
	doc := renderDoc(t, res.target)
	label := doc.Find("label")
	require.Equal(t, 1, label.Length())

	forAttr, _ := label.Attr("for")
	assert.Equal(t, "name", forAttr)
	style, _ := label.Attr("style")
	assert.Equal(t, "color: red; font-size: 12px; opacity: 0.5", style)
	_, hasDisabled := label.Attr("disabled")
	assert.True(t, hasDisabled)
	_, hasHidden := label.Attr("hidden")
	assert.False(t, hasHidden)
}

func TestReactStateUpdateOnClick(t *testing.T) {
	res := runUI(t, `
		function Counter() {
			const [count, setCount] = React.useState(0);
			return <button onClick={() => setCount(c => c + 1)}>count {count}</button>;
		}
		ReactDOM.createRoot(mountNode).render(<Counter />);
		setTimeout(() => {
			mountNode.querySelector("button").click();
			mountNode.querySelector("button").click();
		}, 0);
		setTimeout(() => console.log(mountNode.textContent), 20);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, []string{"count 2"}, contents(res.out.Records()))
	assert.Equal(t, "count 2", res.target.Text())
}

func TestReactEffectsAndCleanup(t *testing.T) {
	res := runUI(t, `
		function Clock() {
			const ticks = React.useRef(0);
			React.useEffect(() => {
				ticks.current++;
				console.log("mounted " + ticks.current);
				return () => console.log("cleanup");
			}, []);
			return <p>clock</p>;
		}
		ReactDOM.createRoot(mountNode).render(<Clock />);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, []string{"mounted 1"}, contents(res.out.Records()))
	assert.Equal(t, 1, res.target.Roots())

	res.target.Clear()

	assert.Equal(t, []string{"mounted 1", "cleanup"}, contents(res.out.Records()))
	assert.Equal(t, "", res.target.HTML())
	assert.Equal(t, 0, res.target.Roots())
}

func TestReactCleanupsRunBeforeSiblingEffects(t *testing.T) {
	res := runUI(t, `
		function Child({ name, n }) {
			React.useEffect(() => {
				console.log("effect " + name + n);
				return () => console.log("cleanup " + name + n);
			}, [n]);
			return <i>{name}</i>;
		}
		const root = ReactDOM.createRoot(mountNode);
		root.render(<div><Child name="a" n={0} /><Child name="b" n={0} /></div>);
		root.render(<div><Child name="a" n={1} /><Child name="b" n={1} /></div>);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, []string{
		"effect a0", "effect b0",
		"cleanup a0", "cleanup b0",
		"effect a1", "effect b1",
	}, contents(res.out.Records()))
}

func TestReactEffectDependencies(t *testing.T) {
	res := runUI(t, `
		function Echo() {
			const [n, setN] = React.useState(0);
			const doubled = React.useMemo(() => n * 2, [n]);
			React.useEffect(() => {
				console.log("effect " + n + " " + doubled);
				if (n < 2) setN(n + 1);
			}, [n]);
			return <span>{doubled}</span>;
		}
		ReactDOM.createRoot(mountNode).render(<Echo />);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, []string{"effect 0 0", "effect 1 2", "effect 2 4"}, contents(res.out.Records()))
	assert.Equal(t, "<span>4</span>", res.target.HTML())
}

func TestReactUnmount(t *testing.T) {
	res := runUI(t, `
		function Item() {
			React.useEffect(() => () => console.log("bye"), []);
			return <em>item</em>;
		}
		ReactDOM.render(<Item />, mountNode);
		console.log(ReactDOM.unmountComponentAtNode(mountNode));
		console.log(ReactDOM.unmountComponentAtNode(mountNode));
		console.log(mountNode.innerHTML === "");
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, []string{"bye", "true", "false", "true"}, contents(res.out.Records()))
	assert.Equal(t, 0, res.target.Roots())
}

func TestReactModuleImports(t *testing.T) {
	res := runUI(t, `
		import React, { useState } from "react";
		import { createRoot } from "react-dom/client";

		function Title() {
			const [text] = useState("Hi");
			return <h1>{text}</h1>;
		}
		createRoot(mountNode).render(<Title />);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, "<h1>Hi</h1>", res.target.HTML())
}

func TestReactHookOutsideComponent(t *testing.T) {
	res := runScript(t, testConfig(), `React.useState(1);`)

	require.NotNil(t, res.exec.Fault())
	assert.True(t, strings.HasPrefix(res.exec.Fault().Message, "TypeError: Invalid hook call"))
}

func TestReactComponentErrorIsFault(t *testing.T) {
	res := runUI(t, `
		function Broken() { throw new Error("render failed"); }
		console.log("before render");
		ReactDOM.createRoot(mountNode).render(<Broken />);
	`)

	require.NotNil(t, res.exec.Fault())
	assert.Equal(t, "Error: render failed", res.exec.Fault().Message)
	assert.Equal(t, []string{"before render"}, contents(res.out.Records()))
}

func TestReactInvalidContainer(t *testing.T) {
	res := runScript(t, testConfig(), `ReactDOM.createRoot({});`)

	require.NotNil(t, res.exec.Fault())
	assert.Equal(t, "TypeError: Target container is not a DOM element.", res.exec.Fault().Message)
}

func TestDOMBindings(t *testing.T) {
	res := runScript(t, testConfig(), `
		const list = document.createElement("ul");
		list.className = "items";
		for (const label of ["a", "b"]) {
			const li = document.createElement("li");
			li.textContent = label;
			li.setAttribute("data-label", label);
			list.appendChild(li);
		}
		mountNode.appendChild(list);

		const p = document.createElement("p");
		p.innerHTML = "<b>bold</b> text";
		p.style.fontWeight = "bold";
		mountNode.appendChild(p);

		console.log(list.children.length, list.firstChild.textContent, list.tagName);
		console.log(mountNode.querySelector(".items") === list);
		console.log(p.getAttribute("style"), p.getAttribute("missing"));

		let clicks = 0;
		list.addEventListener("click", () => clicks++);
		list.firstChild.click();
		console.log("clicks " + clicks);

		list.removeChild(list.firstChild);
	`)

	require.Nil(t, res.exec.Fault())
	assert.Equal(t, []string{
		"2 a UL",
		"true",
		"font-weight: bold null",
		"clicks 1",
	}, contents(res.out.Records()))

	doc := renderDoc(t, res.target)
	assert.Equal(t, 1, doc.Find("ul.items li").Length())
	assert.Equal(t, "b", doc.Find(`li[data-label="b"]`).Text())
	assert.Equal(t, "bold", doc.Find("p b").Text())
}

func TestDOMBindingsErrors(t *testing.T) {
	res := runScript(t, testConfig(), `
		const outer = document.createElement("div");
		const inner = document.createElement("div");
		outer.appendChild(inner);
		inner.appendChild(outer);
	`)

	require.NotNil(t, res.exec.Fault())
	assert.Contains(t, res.exec.Fault().Message, "TypeError: Failed to execute 'appendChild'")
}

func TestTargetClearRestoresDocument(t *testing.T) {
	res := runScript(t, testConfig(), `
		mountNode.innerHTML = "<p>old</p>";
		const stray = document.createElement("aside");
		document.body.appendChild(stray);
		document.body.removeChild(mountNode);
	`)
	require.Nil(t, res.exec.Fault())

	res.target.Clear()

	body := res.target.DOM().Body()
	require.Len(t, res.target.DOM().Children(body), 1)
	assert.Same(t, res.target.Element(), res.target.DOM().Children(body)[0])
	assert.Equal(t, "", res.target.HTML())
}

func TestTargetIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewTarget().ID()
		assert.True(t, strings.HasPrefix(id, "mount_"))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestTargetIsolationBetweenRuns(t *testing.T) {
	rt := New(testConfig())
	target := NewTarget()

	first := rt.Execute(context.Background(), `
		ReactDOM.createRoot(mountNode).render(React.createElement("p", null, "first"));
	`, target, NewOutputLog(1, 0, nil))
	first.Cancel()
	first.Wait()
	target.Clear()

	out := NewOutputLog(2, 0, nil)
	second := rt.Execute(context.Background(), `console.log(mountNode.childNodes.length);`, target, out)
	select {
	case <-second.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("second run did not finish")
	}

	assert.Equal(t, []string{"0"}, contents(out.Records()))
	assert.Equal(t, "", target.HTML())
}
