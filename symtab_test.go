package p2sh

import "testing"

func TestSymbolTableDefineGlobalVsLocal(t *testing.T) {
	resetGlobalIndex()
	top := NewSymbolTable(nil)
	g1 := top.Define("a")
	if g1.Scope != ScopeGlobal || g1.Index != 0 {
		t.Fatalf("expected first top-level define to be global 0, got %+v", g1)
	}
	g2 := top.Define("b")
	if g2.Scope != ScopeGlobal || g2.Index != 1 {
		t.Fatalf("expected second top-level define to be global 1, got %+v", g2)
	}

	fn := NewSymbolTable(top)
	l1 := fn.Define("x")
	if l1.Scope != ScopeLocal || l1.Index != 0 {
		t.Fatalf("expected a nested function's first define to be local 0, got %+v", l1)
	}
}

func TestSymbolTableResolveCapturesUpvalue(t *testing.T) {
	resetGlobalIndex()
	outer := NewSymbolTable(nil)
	outerFn := NewSymbolTable(outer)
	outerFn.Define("captured")

	innerFn := NewSymbolTable(outerFn)
	sym, ok := innerFn.Resolve("captured", nil)
	if !ok {
		t.Fatal("expected captured to resolve via upvalue chain")
	}
	if sym.Scope != ScopeFree {
		t.Fatalf("expected ScopeFree, got %v", sym.Scope)
	}
	if len(outerFn.Upvalues()) != 0 {
		t.Fatal("capturing in innerFn must not add an upvalue descriptor to outerFn itself")
	}
	if len(innerFn.Upvalues()) != 1 {
		t.Fatalf("expected innerFn to record exactly one upvalue descriptor, got %d", len(innerFn.Upvalues()))
	}
	if !innerFn.Upvalues()[0].IsLocal {
		t.Fatal("the captured variable is a local of outerFn, so IsLocal must be true")
	}
}

func TestSymbolTableResolveDedupesRepeatedCapture(t *testing.T) {
	resetGlobalIndex()
	outer := NewSymbolTable(nil)
	outerFn := NewSymbolTable(outer)
	outerFn.Define("v")
	innerFn := NewSymbolTable(outerFn)

	s1, _ := innerFn.Resolve("v", nil)
	s2, _ := innerFn.Resolve("v", nil)
	if s1.Index != s2.Index {
		t.Fatalf("resolving the same captured name twice should reuse one upvalue slot, got %d and %d", s1.Index, s2.Index)
	}
	if len(innerFn.Upvalues()) != 1 {
		t.Fatalf("expected exactly one upvalue descriptor after two resolves, got %d", len(innerFn.Upvalues()))
	}
}

func TestSymbolTableResolveFallsBackToBuiltin(t *testing.T) {
	resetGlobalIndex()
	reg := NewBuiltinRegistry()
	reg.Register("len", 1, func(vm *VM, args []Value) (Value, error) { return Null, nil })

	top := NewSymbolTable(nil)
	sym, ok := top.Resolve("len", reg)
	if !ok {
		t.Fatal("expected len to resolve against the builtin registry")
	}
	if sym.Scope != ScopeBuiltin {
		t.Fatalf("expected ScopeBuiltin, got %v", sym.Scope)
	}
}

func TestSymbolTablePushPopScope(t *testing.T) {
	resetGlobalIndex()
	top := NewSymbolTable(nil)
	fn := NewSymbolTable(top)
	fn.Define("a")
	fn.PushScope()
	fn.Define("b")
	popped := fn.PopScope()
	if len(popped) != 1 || popped[0].Name != "b" {
		t.Fatalf("expected PopScope to return [b], got %+v", popped)
	}
	if _, ok := fn.resolveLocal("a"); !ok {
		t.Fatal("a defined in the outer scope must still resolve after the inner scope is popped")
	}
	if _, ok := fn.resolveLocal("b"); ok {
		t.Fatal("b must no longer resolve after its scope was popped")
	}
}
