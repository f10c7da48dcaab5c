package sandbox

import (
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// bindings exposes the Go DOM to one VM. Proxies are cached so the same
// element always maps to the same JS object.
type bindings struct {
	vm      *goja.Runtime
	dom     *DOM
	proxies map[*Element]*goja.Object
	elems   map[*goja.Object]*Element

	// listeners added with addEventListener, per event type
	listeners map[*Element]map[string][]goja.Value
	// handlers set through UI props (onClick...), replaced on every render
	handlers map[*Element]map[string]goja.Value
}

func newBindings(vm *goja.Runtime, dom *DOM) *bindings {
	return &bindings{
		vm:        vm,
		dom:       dom,
		proxies:   make(map[*Element]*goja.Object),
		elems:     make(map[*goja.Object]*Element),
		listeners: make(map[*Element]map[string][]goja.Value),
		handlers:  make(map[*Element]map[string]goja.Value),
	}
}

// document builds the JS document object
func (b *bindings) document() *goja.Object {
	doc := b.vm.NewObject()
	_ = doc.Set("body", b.wrap(b.dom.Body()))
	_ = doc.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return b.wrap(b.dom.CreateElement(call.Argument(0).String()))
	})
	_ = doc.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return b.wrap(b.dom.CreateText(call.Argument(0).String()))
	})
	_ = doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return b.wrap(b.dom.GetElementByID(call.Argument(0).String()))
	})
	_ = doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return b.first(b.dom.Query(call.Argument(0).String()))
	})
	_ = doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.list(b.dom.Query(call.Argument(0).String()))
	})
	return doc
}

// wrap returns the proxy for elem, or null
func (b *bindings) wrap(elem *Element) goja.Value {
	if elem == nil {
		return goja.Null()
	}
	if obj, ok := b.proxies[elem]; ok {
		return obj
	}

	obj := b.vm.NewObject()
	b.proxies[elem] = obj
	b.elems[obj] = elem

	b.accessor(obj, "nodeType", func() goja.Value {
		if elem.Type == TextNode {
			return b.vm.ToValue(3)
		}
		return b.vm.ToValue(1)
	}, nil)
	b.accessor(obj, "tagName", func() goja.Value {
		if elem.Type == TextNode {
			return goja.Undefined()
		}
		return b.vm.ToValue(strings.ToUpper(elem.TagName))
	}, nil)
	b.accessor(obj, "nodeName", func() goja.Value {
		if elem.Type == TextNode {
			return b.vm.ToValue("#text")
		}
		return b.vm.ToValue(strings.ToUpper(elem.TagName))
	}, nil)
	b.attrAccessor(obj, elem, "id", "id")
	b.attrAccessor(obj, elem, "className", "class")
	b.attrAccessor(obj, elem, "value", "value")
	b.accessor(obj, "textContent", func() goja.Value {
		return b.vm.ToValue(b.dom.TextContent(elem))
	}, func(v goja.Value) {
		b.forgetChildren(elem)
		b.dom.SetText(elem, stringOrEmpty(v))
	})
	b.accessor(obj, "innerHTML", func() goja.Value {
		return b.vm.ToValue(b.dom.InnerHTML(elem))
	}, func(v goja.Value) {
		b.forgetChildren(elem)
		if err := b.dom.SetInnerHTML(elem, stringOrEmpty(v)); err != nil {
			panic(b.vm.NewTypeError(err.Error()))
		}
	})
	b.accessor(obj, "parentNode", func() goja.Value {
		return b.wrap(b.dom.Parent(elem))
	}, nil)
	b.accessor(obj, "childNodes", func() goja.Value {
		return b.list(b.dom.Children(elem))
	}, nil)
	b.accessor(obj, "children", func() goja.Value {
		var out []*Element
		for _, c := range b.dom.Children(elem) {
			if c.Type == ElementNode {
				out = append(out, c)
			}
		}
		return b.list(out)
	}, nil)
	b.accessor(obj, "firstChild", func() goja.Value {
		if children := b.dom.Children(elem); len(children) > 0 {
			return b.wrap(children[0])
		}
		return goja.Null()
	}, nil)
	b.accessor(obj, "style", func() goja.Value {
		return b.vm.NewDynamicObject(&styleObject{vm: b.vm, dom: b.dom, elem: elem})
	}, func(v goja.Value) {
		b.dom.SetAttribute(elem, "style", stringOrEmpty(v))
	})

	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := b.node(call.Argument(0))
		if err := b.dom.AppendChild(elem, child); err != nil {
			panic(b.vm.NewTypeError("Failed to execute 'appendChild' on 'Node': " + err.Error()))
		}
		return call.Argument(0)
	})
	_ = obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := b.node(call.Argument(0))
		if err := b.dom.RemoveChild(elem, child); err != nil {
			panic(b.vm.NewTypeError("Failed to execute 'removeChild' on 'Node': " + err.Error()))
		}
		return call.Argument(0)
	})
	_ = obj.Set("remove", func(goja.FunctionCall) goja.Value {
		if parent := b.dom.Parent(elem); parent != nil {
			_ = b.dom.RemoveChild(parent, elem)
		}
		return goja.Undefined()
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		b.dom.SetAttribute(elem, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := b.dom.GetAttribute(elem, call.Argument(0).String()); ok {
			return b.vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		b.dom.RemoveAttribute(elem, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return b.first(b.dom.QueryIn(elem, call.Argument(0).String()))
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.list(b.dom.QueryIn(elem, call.Argument(0).String()))
	})
	_ = obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if _, ok := goja.AssertFunction(call.Argument(1)); ok {
			b.listen(elem, call.Argument(0).String(), call.Argument(1))
		}
		return goja.Undefined()
	})
	_ = obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		b.unlisten(elem, call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
	_ = obj.Set("click", func(goja.FunctionCall) goja.Value {
		b.dispatch(elem, "click")
		return goja.Undefined()
	})

	return obj
}

func (b *bindings) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

func (b *bindings) attrAccessor(obj *goja.Object, elem *Element, prop, attr string) {
	b.accessor(obj, prop, func() goja.Value {
		v, _ := b.dom.GetAttribute(elem, attr)
		return b.vm.ToValue(v)
	}, func(v goja.Value) {
		b.dom.SetAttribute(elem, attr, stringOrEmpty(v))
	})
}

// node resolves a JS value to the element it proxies
func (b *bindings) node(v goja.Value) *Element {
	if obj, ok := v.(*goja.Object); ok {
		if elem, ok := b.elems[obj]; ok {
			return elem
		}
	}
	panic(b.vm.NewTypeError("parameter 1 is not of type 'Node'"))
}

func (b *bindings) first(elems []*Element) goja.Value {
	if len(elems) == 0 {
		return goja.Null()
	}
	return b.wrap(elems[0])
}

func (b *bindings) list(elems []*Element) goja.Value {
	items := make([]interface{}, len(elems))
	for i, e := range elems {
		items[i] = b.wrap(e)
	}
	return b.vm.NewArray(items...)
}

func (b *bindings) listen(elem *Element, event string, fn goja.Value) {
	byType, ok := b.listeners[elem]
	if !ok {
		byType = make(map[string][]goja.Value)
		b.listeners[elem] = byType
	}
	byType[event] = append(byType[event], fn)
}

func (b *bindings) unlisten(elem *Element, event string, fn goja.Value) {
	fns := b.listeners[elem][event]
	for i, f := range fns {
		if f.SameAs(fn) {
			b.listeners[elem][event] = append(fns[:i], fns[i+1:]...)
			return
		}
	}
}

// setHandler binds a prop handler such as onClick; a nil fn removes it
func (b *bindings) setHandler(elem *Element, event string, fn goja.Value) {
	byType, ok := b.handlers[elem]
	if !ok {
		byType = make(map[string]goja.Value)
		b.handlers[elem] = byType
	}
	if fn == nil {
		delete(byType, event)
		return
	}
	byType[event] = fn
}

// dispatch fires event on elem and bubbles it through the ancestors until a
// handler calls stopPropagation.
func (b *bindings) dispatch(elem *Element, event string) {
	stopped := false
	ev := b.vm.NewObject()
	_ = ev.Set("type", event)
	_ = ev.Set("target", b.wrap(elem))
	_ = ev.Set("preventDefault", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = ev.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		stopped = true
		return goja.Undefined()
	})

	for cur := elem; cur != nil && !stopped; cur = b.dom.Parent(cur) {
		_ = ev.Set("currentTarget", b.wrap(cur))

		var fns []goja.Value
		if h, ok := b.handlers[cur][event]; ok {
			fns = append(fns, h)
		}
		fns = append(fns, b.listeners[cur][event]...)
		for _, f := range fns {
			fn, ok := goja.AssertFunction(f)
			if !ok {
				continue
			}
			if _, err := fn(b.wrap(cur), ev); err != nil {
				rethrow(b.vm, err)
			}
		}
	}
}

// forget drops the proxies and handlers of a removed subtree
func (b *bindings) forget(elem *Element) {
	for _, child := range b.dom.Children(elem) {
		b.forget(child)
	}
	if obj, ok := b.proxies[elem]; ok {
		delete(b.elems, obj)
		delete(b.proxies, elem)
	}
	delete(b.listeners, elem)
	delete(b.handlers, elem)
}

func (b *bindings) forgetChildren(elem *Element) {
	for _, child := range b.dom.Children(elem) {
		b.forget(child)
	}
}

func stringOrEmpty(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

// styleObject maps element.style properties onto the style attribute
type styleObject struct {
	vm   *goja.Runtime
	dom  *DOM
	elem *Element
}

func (s *styleObject) decls() map[string]string {
	raw, _ := s.dom.GetAttribute(s.elem, "style")
	return parseStyle(raw)
}

func (s *styleObject) Get(key string) goja.Value {
	if v, ok := s.decls()[cssProperty(key)]; ok {
		return s.vm.ToValue(v)
	}
	if key == "cssText" {
		raw, _ := s.dom.GetAttribute(s.elem, "style")
		return s.vm.ToValue(raw)
	}
	return s.vm.ToValue("")
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		s.dom.SetAttribute(s.elem, "style", stringOrEmpty(val))
		return true
	}
	decls := s.decls()
	if v := stringOrEmpty(val); v == "" {
		delete(decls, cssProperty(key))
	} else {
		decls[cssProperty(key)] = v
	}
	s.dom.SetAttribute(s.elem, "style", formatStyle(decls))
	return true
}

func (s *styleObject) Has(key string) bool {
	_, ok := s.decls()[cssProperty(key)]
	return ok
}

func (s *styleObject) Delete(key string) bool {
	return s.Set(key, goja.Undefined())
}

func (s *styleObject) Keys() []string {
	decls := s.decls()
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cssProperty converts camelCase JS names to CSS property names
func cssProperty(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseStyle(raw string) map[string]string {
	decls := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name != "" {
			decls[name] = strings.TrimSpace(value)
		}
	}
	return decls
}

func formatStyle(decls map[string]string) string {
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + decls[k]
	}
	return strings.Join(parts, "; ")
}
