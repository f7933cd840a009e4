package p2sh

import "testing"

// compileSrc is the shared test helper: parse + compile one program
// against the standard builtin registry, failing the test on any error.
func compileSrc(t *testing.T, src string) *CompiledProgram {
	t.Helper()
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	compiled, err := Compile(prog, NewStandardRegistry())
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return compiled
}

func runSrc(t *testing.T, src string) Value {
	t.Helper()
	builtins := NewStandardRegistry()
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	compiled, err := Compile(prog, builtins)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	vm := NewVM(compiled, builtins, nil, nil, nil)
	v, err := vm.Run()
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return v
}

func TestArithmeticTailValue(t *testing.T) {
	v := runSrc(t, "1 + 2 * 3")
	if v.Tag != TagInt || v.Data.(int64) != 7 {
		t.Fatalf("got %+v, want int 7", v)
	}
}

func TestLetAndReassignment(t *testing.T) {
	v := runSrc(t, "let x = 10; x = x + 5; x")
	if v.Tag != TagInt || v.Data.(int64) != 15 {
		t.Fatalf("got %+v, want int 15", v)
	}
}

func TestIfExprValue(t *testing.T) {
	v := runSrc(t, "if 1 < 2 { \"yes\" } else { \"no\" }")
	if v.Tag != TagString || v.Data.(string) != "yes" {
		t.Fatalf("got %+v, want string yes", v)
	}
}

func TestClosureCapturesUpvalue(t *testing.T) {
	v := runSrc(t, `
		let counter = fn() {
			let n = 0;
			fn() { n = n + 1; n }
		};
		let c = counter();
		c();
		c()
	`)
	if v.Tag != TagInt || v.Data.(int64) != 2 {
		t.Fatalf("got %+v, want int 2 (second call of a shared counter)", v)
	}
}

func TestRecursiveFnLit(t *testing.T) {
	v := runSrc(t, `
		let fact = fn rec(n) {
			if n <= 1 { 1 } else { n * rec(n - 1) }
		};
		fact(5)
	`)
	if v.Tag != TagInt || v.Data.(int64) != 120 {
		t.Fatalf("got %+v, want int 120", v)
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	v := runSrc(t, `
		let i = 0;
		let sum = 0;
		while i < 5 {
			sum = sum + i;
			i = i + 1;
		};
		sum
	`)
	if v.Tag != TagInt || v.Data.(int64) != 10 {
		t.Fatalf("got %+v, want int 10", v)
	}
}

func TestLoopBreakValue(t *testing.T) {
	v := runSrc(t, `
		let i = 0;
		loop {
			i = i + 1;
			if i == 3 { break; }
		};
		i
	`)
	if v.Tag != TagInt || v.Data.(int64) != 3 {
		t.Fatalf("got %+v, want int 3", v)
	}
}

func TestMatchAlternationAndRange(t *testing.T) {
	v := runSrc(t, `
		let classify = fn(n) {
			match n {
				1 | 2 | 3 => "small",
				4..10 => "medium",
				_ => "large",
			}
		};
		[classify(2), classify(7), classify(42)]
	`)
	arr, ok := v.Data.(*Array)
	if !ok || len(arr.Elems) != 3 {
		t.Fatalf("expected a 3-element array, got %+v", v)
	}
	want := []string{"small", "medium", "large"}
	for i, w := range want {
		if arr.Elems[i].Data.(string) != w {
			t.Errorf("element %d: got %q, want %q", i, arr.Elems[i].Data.(string), w)
		}
	}
}

func TestCompiledProgramRegistersImplicitGlobals(t *testing.T) {
	compiled := compileSrc(t, `@ { }`)
	for _, name := range []string{"NP", "PL", "WL", "TSS", "TSU", "$0", "$1", "$2", "$3"} {
		if _, ok := compiled.ImplicitVar[name]; !ok {
			t.Errorf("expected implicit global %q to be registered", name)
		}
	}
	if len(compiled.Filters) != 1 {
		t.Fatalf("expected one filter unit, got %d", len(compiled.Filters))
	}
}

func TestArrayAndMapLiterals(t *testing.T) {
	v := runSrc(t, `
		let m = map { "a": 1, "b": 2 };
		let xs = [m["a"], m["b"]];
		xs[0] + xs[1]
	`)
	if v.Tag != TagInt || v.Data.(int64) != 3 {
		t.Fatalf("got %+v, want int 3", v)
	}
}

func TestShortCircuitLogical(t *testing.T) {
	v := runSrc(t, `false && (1 / 0)`)
	if v.Tag != TagBool || v.Data.(bool) != false {
		t.Fatalf("got %+v, want false (right side must not evaluate)", v)
	}
}
