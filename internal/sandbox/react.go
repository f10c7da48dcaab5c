package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

type hookKind int

const (
	hookState hookKind = iota
	hookEffect
	hookRef
	hookMemo
)

type hook struct {
	kind    hookKind
	init    bool
	value   goja.Value // state, ref object or memoised value
	setter  goja.Value
	deps    []goja.Value
	effect  goja.Callable
	cleanup goja.Callable
}

// instance holds the hooks of one component at one position in a tree
type instance struct {
	typ   *goja.Object
	hooks []*hook
	seen  bool
}

// reactRuntime implements the subset of React and ReactDOM that playground
// code uses: elements, fragments, function components with hooks and roots.
type reactRuntime struct {
	vm       *goja.Runtime
	b        *bindings
	loop     *loop
	target   *Target
	config   Config
	typeof   *goja.Symbol
	fragment *goja.Symbol
	roots    map[*Element]*root

	// component currently rendering
	owner   *root
	current *instance
	cursor  int
}

func newReactRuntime(vm *goja.Runtime, b *bindings, l *loop, target *Target, config Config) *reactRuntime {
	return &reactRuntime{
		vm:       vm,
		b:        b,
		loop:     l,
		target:   target,
		config:   config,
		typeof:   goja.NewSymbol("react.element"),
		fragment: goja.NewSymbol("react.fragment"),
		roots:    make(map[*Element]*root),
	}
}

// React builds the React object
func (r *reactRuntime) React() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("createElement", r.createElement)
	_ = obj.Set("Fragment", r.fragment)
	_ = obj.Set("useState", r.useState)
	_ = obj.Set("useEffect", r.useEffect)
	_ = obj.Set("useRef", r.useRef)
	_ = obj.Set("useMemo", r.useMemo)
	_ = obj.Set("useCallback", r.useCallback)
	_ = obj.Set("isValidElement", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(r.isElement(call.Argument(0)))
	})
	return obj
}

// ReactDOM builds the ReactDOM object, which also serves react-dom/client
func (r *reactRuntime) ReactDOM() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("createRoot", func(call goja.FunctionCall) goja.Value {
		rt := r.rootFor(r.container(call.Argument(0)))
		handle := r.vm.NewObject()
		_ = handle.Set("render", func(c goja.FunctionCall) goja.Value {
			rt.update(c.Argument(0))
			return goja.Undefined()
		})
		_ = handle.Set("unmount", func(goja.FunctionCall) goja.Value {
			rt.teardown()
			return goja.Undefined()
		})
		return handle
	})
	_ = obj.Set("render", func(call goja.FunctionCall) goja.Value {
		rt := r.rootFor(r.container(call.Argument(1)))
		rt.update(call.Argument(0))
		return goja.Undefined()
	})
	_ = obj.Set("unmountComponentAtNode", func(call goja.FunctionCall) goja.Value {
		rt, ok := r.roots[r.container(call.Argument(0))]
		if ok {
			rt.teardown()
		}
		return r.vm.ToValue(ok)
	})
	return obj
}

func (r *reactRuntime) container(v goja.Value) *Element {
	if obj, ok := v.(*goja.Object); ok {
		if elem, ok := r.b.elems[obj]; ok && elem.Type == ElementNode {
			return elem
		}
	}
	panic(r.vm.NewTypeError("Target container is not a DOM element."))
}

func (r *reactRuntime) rootFor(container *Element) *root {
	if rt, ok := r.roots[container]; ok {
		return rt
	}
	rt := &root{
		r:         r,
		container: container,
		instances: make(map[string]*instance),
	}
	r.roots[container] = rt
	r.target.Track(rt)
	return rt
}

func (r *reactRuntime) createElement(call goja.FunctionCall) goja.Value {
	props := r.vm.NewObject()
	key := goja.Null()
	ref := goja.Null()
	if src, ok := call.Argument(1).(*goja.Object); ok {
		for _, k := range src.Keys() {
			switch k {
			case "key":
				key = r.vm.ToValue(src.Get(k).String())
			case "ref":
				ref = src.Get(k)
			default:
				_ = props.Set(k, src.Get(k))
			}
		}
	}
	switch children := call.Arguments; {
	case len(children) == 3:
		_ = props.Set("children", children[2])
	case len(children) > 3:
		items := make([]interface{}, 0, len(children)-2)
		for _, c := range children[2:] {
			items = append(items, c)
		}
		_ = props.Set("children", r.vm.NewArray(items...))
	}

	el := r.vm.NewObject()
	_ = el.Set("$$typeof", r.typeof)
	_ = el.Set("type", call.Argument(0))
	_ = el.Set("key", key)
	_ = el.Set("ref", ref)
	_ = el.Set("props", props)
	return el
}

func (r *reactRuntime) isElement(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	marker := obj.Get("$$typeof")
	return marker != nil && marker.SameAs(r.typeof)
}

// hook returns the next hook slot of the rendering component
func (r *reactRuntime) hook(kind hookKind) *hook {
	if r.current == nil {
		panic(r.vm.NewTypeError("Invalid hook call. Hooks can only be called inside of the body of a function component."))
	}
	inst := r.current
	if r.cursor < len(inst.hooks) {
		h := inst.hooks[r.cursor]
		if h.kind != kind {
			panic(r.vm.NewTypeError("Rendered hooks in a different order than during the previous render."))
		}
		r.cursor++
		return h
	}
	h := &hook{kind: kind}
	inst.hooks = append(inst.hooks, h)
	r.cursor++
	return h
}

func (r *reactRuntime) useState(call goja.FunctionCall) goja.Value {
	h := r.hook(hookState)
	if !h.init {
		h.init = true
		h.value = call.Argument(0)
		if fn, ok := goja.AssertFunction(h.value); ok {
			v, err := fn(goja.Undefined())
			rethrow(r.vm, err)
			h.value = v
		}
		owner := r.owner
		h.setter = r.vm.ToValue(func(c goja.FunctionCall) goja.Value {
			next := c.Argument(0)
			if fn, ok := goja.AssertFunction(next); ok {
				v, err := fn(goja.Undefined(), h.value)
				rethrow(r.vm, err)
				next = v
			}
			if next.SameAs(h.value) {
				return goja.Undefined()
			}
			h.value = next
			owner.schedule()
			return goja.Undefined()
		})
	}
	return r.vm.NewArray(h.value, h.setter)
}

func (r *reactRuntime) useEffect(call goja.FunctionCall) goja.Value {
	h := r.hook(hookEffect)
	effect, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("useEffect expects a function"))
	}
	deps, hasDeps := r.deps(call.Argument(1))
	if !h.init || !hasDeps || depsChanged(h.deps, deps) {
		h.init = true
		h.deps = deps
		h.effect = effect
		r.owner.effects = append(r.owner.effects, h)
	}
	return goja.Undefined()
}

func (r *reactRuntime) useRef(call goja.FunctionCall) goja.Value {
	h := r.hook(hookRef)
	if !h.init {
		h.init = true
		ref := r.vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		h.value = ref
	}
	return h.value
}

func (r *reactRuntime) useMemo(call goja.FunctionCall) goja.Value {
	h := r.hook(hookMemo)
	factory, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("useMemo expects a function"))
	}
	deps, hasDeps := r.deps(call.Argument(1))
	if !h.init || !hasDeps || depsChanged(h.deps, deps) {
		v, err := factory(goja.Undefined())
		rethrow(r.vm, err)
		h.init = true
		h.deps = deps
		h.value = v
	}
	return h.value
}

func (r *reactRuntime) useCallback(call goja.FunctionCall) goja.Value {
	h := r.hook(hookMemo)
	deps, hasDeps := r.deps(call.Argument(1))
	if !h.init || !hasDeps || depsChanged(h.deps, deps) {
		h.init = true
		h.deps = deps
		h.value = call.Argument(0)
	}
	return h.value
}

func (r *reactRuntime) deps(v goja.Value) ([]goja.Value, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, false
	}
	n := int(obj.Get("length").ToInteger())
	deps := make([]goja.Value, n)
	for i := 0; i < n; i++ {
		deps[i] = obj.Get(strconv.Itoa(i))
	}
	return deps, true
}

func depsChanged(prev, next []goja.Value) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if !prev[i].SameAs(next[i]) {
			return true
		}
	}
	return false
}

// root is one mounted tree. It re-renders the whole tree on every update and
// keeps hook state keyed by each component's position.
type root struct {
	r         *reactRuntime
	container *Element
	tree      goja.Value
	instances map[string]*instance
	effects   []*hook
	scheduled bool
	unmounted bool
}

func (rt *root) update(tree goja.Value) {
	if rt.unmounted {
		panic(rt.r.vm.NewTypeError("Cannot update an unmounted root."))
	}
	rt.tree = tree
	rt.render()
}

func (rt *root) schedule() {
	if rt.scheduled || rt.unmounted {
		return
	}
	rt.scheduled = true
	rt.r.loop.enqueue(func() {
		rt.scheduled = false
		if !rt.unmounted {
			rt.render()
		}
	})
}

func (rt *root) render() {
	for _, inst := range rt.instances {
		inst.seen = false
	}
	rt.effects = nil

	nodes := rt.build(rt.tree, "0")

	dom := rt.r.b.dom
	rt.r.b.forgetChildren(rt.container)
	dom.Clear(rt.container)
	for _, n := range nodes {
		if err := dom.AppendChild(rt.container, n); err != nil {
			panic(rt.r.vm.NewTypeError(err.Error()))
		}
	}

	for _, key := range rt.keys() {
		if inst := rt.instances[key]; !inst.seen {
			rethrow(rt.r.vm, rt.release(key, inst))
		}
	}

	// every pending cleanup of the commit runs before any new effect
	effects := rt.effects
	rt.effects = nil
	for _, h := range effects {
		if h.cleanup != nil {
			_, err := h.cleanup(goja.Undefined())
			h.cleanup = nil
			rethrow(rt.r.vm, err)
		}
	}
	for _, h := range effects {
		res, err := h.effect(goja.Undefined())
		rethrow(rt.r.vm, err)
		if fn, ok := goja.AssertFunction(res); ok {
			h.cleanup = fn
		}
	}
}

func (rt *root) keys() []string {
	keys := make([]string, 0, len(rt.instances))
	for k := range rt.instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// release runs the effect cleanups of an instance that left the tree
func (rt *root) release(key string, inst *instance) error {
	delete(rt.instances, key)
	var firstErr error
	for _, h := range inst.hooks {
		if h.kind != hookEffect || h.cleanup == nil {
			continue
		}
		_, err := h.cleanup(goja.Undefined())
		h.cleanup = nil
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// teardown unmounts the tree from inside running JS
func (rt *root) teardown() {
	if rt.unmounted {
		return
	}
	rt.unmounted = true
	for _, key := range rt.keys() {
		_ = rt.release(key, rt.instances[key])
	}
	rt.r.b.forgetChildren(rt.container)
	rt.r.b.dom.Clear(rt.container)
	delete(rt.r.roots, rt.container)
	rt.r.target.Untrack(rt)
}

// Unmount tears the tree down while no script is running. Cleanup effects
// get the same per-callback budget as timers.
func (rt *root) Unmount() {
	fn, _ := goja.AssertFunction(rt.r.vm.ToValue(func(goja.FunctionCall) goja.Value {
		rt.teardown()
		return goja.Undefined()
	}))
	_ = guard(context.Background(), rt.r.vm, rt.r.config.Timeout, func() error {
		_, err := fn(goja.Undefined())
		return err
	})
}

func (rt *root) build(node goja.Value, path string) []*Element {
	if node == nil || goja.IsUndefined(node) || goja.IsNull(node) {
		return nil
	}
	vm := rt.r.vm
	dom := rt.r.b.dom

	obj, ok := node.(*goja.Object)
	if !ok {
		if _, isBool := node.Export().(bool); isBool {
			return nil
		}
		return []*Element{dom.CreateText(node.String())}
	}
	if obj.ClassName() == "Array" {
		return rt.buildList(obj, path)
	}
	if !rt.r.isElement(obj) {
		panic(vm.NewTypeError("Objects are not valid as a React child"))
	}

	typ := obj.Get("type")
	props := obj.Get("props").ToObject(vm)

	if sym, ok := typ.(*goja.Symbol); ok && sym.SameAs(rt.r.fragment) {
		return rt.buildChildren(props.Get("children"), path)
	}
	if typ != nil && !goja.IsUndefined(typ) && !goja.IsNull(typ) {
		if _, isObj := typ.(*goja.Object); !isObj {
			return []*Element{rt.host(typ.String(), props, obj.Get("ref"), path)}
		}
	}
	if fn, ok := goja.AssertFunction(typ); ok {
		return rt.component(typ.(*goja.Object), fn, props, path)
	}
	panic(vm.NewTypeError(fmt.Sprintf("Element type is invalid: expected a string or a function but got: %s", typ)))
}

func (rt *root) buildList(arr *goja.Object, path string) []*Element {
	var out []*Element
	n := int(arr.Get("length").ToInteger())
	for i := 0; i < n; i++ {
		child := arr.Get(strconv.Itoa(i))
		seg := strconv.Itoa(i)
		if rt.r.isElement(child) {
			if k := child.ToObject(rt.r.vm).Get("key"); k != nil && !goja.IsNull(k) {
				seg = "k:" + k.String()
			}
		}
		out = append(out, rt.build(child, path+"."+seg)...)
	}
	return out
}

func (rt *root) buildChildren(children goja.Value, path string) []*Element {
	if obj, ok := children.(*goja.Object); ok && obj.ClassName() == "Array" {
		return rt.buildList(obj, path)
	}
	return rt.build(children, path+".0")
}

func (rt *root) component(typ *goja.Object, fn goja.Callable, props *goja.Object, path string) []*Element {
	key := path + "#"
	inst, ok := rt.instances[key]
	if ok && !inst.typ.SameAs(typ) {
		rethrow(rt.r.vm, rt.release(key, inst))
		ok = false
	}
	if !ok {
		inst = &instance{typ: typ}
		rt.instances[key] = inst
	}
	inst.seen = true

	r := rt.r
	prevOwner, prevCurrent, prevCursor := r.owner, r.current, r.cursor
	r.owner, r.current, r.cursor = rt, inst, 0
	out, err := fn(goja.Undefined(), props)
	r.owner, r.current, r.cursor = prevOwner, prevCurrent, prevCursor
	rethrow(r.vm, err)

	return rt.build(out, key+">")
}

func (rt *root) host(tag string, props *goja.Object, ref goja.Value, path string) *Element {
	r := rt.r
	elem := r.b.dom.CreateElement(tag)

	rawHTML := false
	for _, k := range props.Keys() {
		v := props.Get(k)
		switch {
		case k == "children":
		case k == "dangerouslySetInnerHTML":
			if obj, ok := v.(*goja.Object); ok {
				if err := r.b.dom.SetInnerHTML(elem, stringOrEmpty(obj.Get("__html"))); err != nil {
					panic(r.vm.NewTypeError(err.Error()))
				}
				rawHTML = true
			}
		case isEventProp(k):
			if _, ok := goja.AssertFunction(v); ok {
				r.b.setHandler(elem, strings.ToLower(k[2:]), v)
			}
		case k == "style":
			if obj, ok := v.(*goja.Object); ok {
				r.b.dom.SetAttribute(elem, "style", styleText(obj))
			} else if s := stringOrEmpty(v); s != "" {
				r.b.dom.SetAttribute(elem, "style", s)
			}
		default:
			name, value, ok := attribute(k, v)
			if ok {
				r.b.dom.SetAttribute(elem, name, value)
			}
		}
	}

	if !rawHTML {
		for _, child := range rt.buildChildren(props.Get("children"), path) {
			if err := r.b.dom.AppendChild(elem, child); err != nil {
				panic(r.vm.NewTypeError(err.Error()))
			}
		}
	}

	if refObj, ok := ref.(*goja.Object); ok {
		if fn, isFn := goja.AssertFunction(refObj); isFn {
			_, err := fn(goja.Undefined(), r.b.wrap(elem))
			rethrow(r.vm, err)
		} else {
			_ = refObj.Set("current", r.b.wrap(elem))
		}
	}
	return elem
}

func isEventProp(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on") && name[2] >= 'A' && name[2] <= 'Z'
}

// attribute maps a host prop to an HTML attribute
func attribute(prop string, v goja.Value) (string, string, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", "", false
	}
	if _, isObj := v.(*goja.Object); isObj {
		if _, isFn := goja.AssertFunction(v); isFn {
			return "", "", false
		}
	}

	name := prop
	switch prop {
	case "className":
		name = "class"
	case "htmlFor":
		name = "for"
	}
	name = strings.ToLower(name)

	if b, ok := v.Export().(bool); ok {
		if !b {
			return "", "", false
		}
		return name, "", true
	}
	return name, v.String(), true
}

var unitless = map[string]bool{
	"opacity":    true,
	"zIndex":     true,
	"flex":       true,
	"flexGrow":   true,
	"flexShrink": true,
	"fontWeight": true,
	"lineHeight": true,
	"order":      true,
}

// styleText converts a style object to CSS text, adding px to bare numbers
func styleText(obj *goja.Object) string {
	decls := make(map[string]string)
	for _, k := range obj.Keys() {
		v := obj.Get(k)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			continue
		}
		value := v.String()
		switch v.Export().(type) {
		case int64, float64:
			if !unitless[k] && value != "0" {
				value += "px"
			}
		}
		decls[cssProperty(k)] = value
	}
	return formatStyle(decls)
}
