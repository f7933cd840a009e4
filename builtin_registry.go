// builtin_registry.go — the fixed-index built-in namespace (§4.D "Built-ins").
//
// Grounded on the teacher's RegisterNative/NativeImpl pattern in
// interpreter.go/runtime.go: a name is registered once against a native Go
// function, and the compiler resolves identifiers against this table at
// compile time (scope = builtin) rather than the VM doing a name lookup at
// every call.
package p2sh

// BuiltinRegistry is the compile-time builtin namespace: a name resolves
// to a fixed index here, and OpGetBuiltin <index> fetches the
// corresponding *Builtin value handle at runtime.
type BuiltinRegistry struct {
	order []*Builtin
	index map[string]int
}

func NewBuiltinRegistry() *BuiltinRegistry {
	return &BuiltinRegistry{index: map[string]int{}}
}

// Register adds a native primitive under name, returning its fixed index.
// Re-registering an existing name replaces its implementation in place
// without changing its index.
func (r *BuiltinRegistry) Register(name string, arity int, fn func(vm *VM, args []Value) (Value, error)) int {
	if idx, ok := r.index[name]; ok {
		r.order[idx] = &Builtin{Name: name, Arity: arity, Fn: fn}
		return idx
	}
	b := &Builtin{Name: name, Arity: arity, Fn: fn}
	idx := len(r.order)
	r.order = append(r.order, b)
	r.index[name] = idx
	return idx
}

func (r *BuiltinRegistry) Index(name string) (int, bool) {
	idx, ok := r.index[name]
	return idx, ok
}

func (r *BuiltinRegistry) At(idx int) *Builtin {
	if idx < 0 || idx >= len(r.order) {
		return nil
	}
	return r.order[idx]
}

// NewStandardRegistry builds the registry with every built-in p2sh ships
// (§4.I): numeric/string/collection/IO/time/pcap primitives. Each
// register*Builtins function lives in its own builtin_*.go file, mirroring
// the teacher's one-concern-per-file register*Builtins(ip) layout in
// runtime.go.
func NewStandardRegistry() *BuiltinRegistry {
	r := NewBuiltinRegistry()
	registerCoreBuiltins(r)
	registerStringBuiltins(r)
	registerCollectionBuiltins(r)
	registerIOBuiltins(r)
	registerTimeBuiltins(r)
	registerPcapBuiltins(r)
	return r
}
