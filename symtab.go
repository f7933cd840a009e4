// symtab.go — lexical scopes, slot assignment, free-variable tracking (§4.C).
package p2sh

// SymScope is where a resolved symbol lives.
type SymScope int

const (
	ScopeGlobal SymScope = iota
	ScopeLocal
	ScopeFree
	ScopeBuiltin
)

// Symbol is one resolved binding: {name, scope, index, is_mutable} per §3.
type Symbol struct {
	Name      string
	Scope     SymScope
	Index     int
	IsMutable bool
}

// upvalueDesc mirrors the Chunk's upvalue descriptor: {is_local, index}.
// is_local=true means "capture the enclosing function's local at Index";
// is_local=false means "capture the enclosing function's upvalue at Index".
type upvalueDesc struct {
	IsLocal bool
	Index   int
}

// SymbolTable is one function's lexical-scope stack plus the upvalue
// descriptor list the compiler will emit alongside OpClosure. There is one
// SymbolTable per nested function being compiled (including the top-level
// chunk, whose Outer is nil).
type SymbolTable struct {
	Outer *SymbolTable

	// scopes[0] is this function's top scope (its parameters live here);
	// nested blocks push further scopes. Globals are only ever recorded in
	// the outermost SymbolTable's scopes[0] when Outer == nil.
	scopes [][]Symbol

	numLocals int
	upvalues  []upvalueDesc
	// dedupe: same captured slot requested twice resolves to the same
	// upvalue index rather than emitting a duplicate descriptor.
	upvalueCache map[Symbol]int
}

func NewSymbolTable(outer *SymbolTable) *SymbolTable {
	st := &SymbolTable{Outer: outer, upvalueCache: map[Symbol]int{}}
	st.scopes = [][]Symbol{{}}
	return st
}

func (st *SymbolTable) PushScope() {
	st.scopes = append(st.scopes, []Symbol{})
}

// PopScope returns the symbols that just went out of scope, so the
// compiler can emit OpCloseUpvalue for their slots.
func (st *SymbolTable) PopScope() []Symbol {
	n := len(st.scopes)
	popped := st.scopes[n-1]
	st.scopes = st.scopes[:n-1]
	return popped
}

// Define binds name as a new symbol in the current scope. At the
// outermost function's top scope it becomes a global; everywhere else a
// local with the next free stack slot.
func (st *SymbolTable) Define(name string) Symbol {
	if st.Outer == nil && len(st.scopes) == 1 {
		sym := Symbol{Name: name, Scope: ScopeGlobal, Index: globalIndexCounter, IsMutable: true}
		globalIndexCounter++
		st.scopes[0] = append(st.scopes[0], sym)
		return sym
	}
	idx := st.numLocals
	st.numLocals++
	sym := Symbol{Name: name, Scope: ScopeLocal, Index: idx, IsMutable: true}
	top := len(st.scopes) - 1
	st.scopes[top] = append(st.scopes[top], sym)
	return sym
}

// globalIndexCounter assigns monotonic global slot indices across the
// whole program (there is exactly one top-level SymbolTable per compiled
// program, so a package-level counter reset per Compile call is enough).
var globalIndexCounter int

func resetGlobalIndex() { globalIndexCounter = 0 }

// resolveLocal looks for name in st's own scopes, innermost first.
func (st *SymbolTable) resolveLocal(name string) (Symbol, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		scope := st.scopes[i]
		for j := len(scope) - 1; j >= 0; j-- {
			if scope[j].Name == name {
				return scope[j], true
			}
		}
	}
	return Symbol{}, false
}

// Resolve finds name following local → free (capturing outward through
// enclosing functions) → global → builtin, per §4.C.
func (st *SymbolTable) Resolve(name string, builtins *BuiltinRegistry) (Symbol, bool) {
	if sym, ok := st.resolveLocal(name); ok {
		return sym, true
	}
	if st.Outer != nil {
		if outerSym, ok := st.Outer.Resolve(name, builtins); ok {
			if outerSym.Scope == ScopeGlobal || outerSym.Scope == ScopeBuiltin {
				return outerSym, true
			}
			// local or free in the enclosing function: capture as an
			// upvalue of this function.
			return st.addUpvalue(outerSym), true
		}
		return Symbol{}, false
	}
	// top-level: no more enclosing scopes; try builtins.
	if builtins != nil {
		if idx, ok := builtins.Index(name); ok {
			return Symbol{Name: name, Scope: ScopeBuiltin, Index: idx}, true
		}
	}
	return Symbol{}, false
}

func (st *SymbolTable) addUpvalue(captured Symbol) Symbol {
	if idx, ok := st.upvalueCache[captured]; ok {
		return Symbol{Name: captured.Name, Scope: ScopeFree, Index: idx, IsMutable: captured.IsMutable}
	}
	desc := upvalueDesc{IsLocal: captured.Scope == ScopeLocal, Index: captured.Index}
	idx := len(st.upvalues)
	st.upvalues = append(st.upvalues, desc)
	st.upvalueCache[captured] = idx
	return Symbol{Name: captured.Name, Scope: ScopeFree, Index: idx, IsMutable: captured.IsMutable}
}

// NumLocals returns the number of local slots this function's frame needs.
func (st *SymbolTable) NumLocals() int { return st.numLocals }

// Upvalues returns the upvalue descriptor list to encode into OpClosure.
func (st *SymbolTable) Upvalues() []upvalueDesc { return st.upvalues }
