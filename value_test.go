package p2sh

import "testing"

func TestNewMapKeyCanonicalizesFloatZero(t *testing.T) {
	pos, ok := NewMapKey(Float(0.0))
	if !ok {
		t.Fatal("+0.0 should be hashable")
	}
	neg, ok := NewMapKey(Float(-0.0))
	if !ok {
		t.Fatal("-0.0 should be hashable")
	}
	if pos != neg {
		t.Fatalf("+0.0 and -0.0 must collide: %+v vs %+v", pos, neg)
	}
}

func TestNewMapKeyRejectsNaN(t *testing.T) {
	nan := Float(0.0)
	nan.Data = nanValue()
	if _, ok := NewMapKey(nan); ok {
		t.Fatal("NaN must not be hashable")
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestMapObjectPreservesInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set(Str("z"), Int(1))
	m.Set(Str("a"), Int(2))
	m.Set(Str("m"), Int(3))
	want := []string{"z", "a", "m"}
	if len(m.Keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(m.Keys))
	}
	for i, k := range m.Keys {
		got := KeyToValue(k).Data.(string)
		if got != want[i] {
			t.Errorf("key %d: got %q, want %q", i, got, want[i])
		}
	}
}

func TestValuesEqualNumericPromotion(t *testing.T) {
	if !ValuesEqual(Int(2), Float(2.0)) {
		t.Error("int 2 should equal float 2.0")
	}
	if ValuesEqual(Int(2), Float(2.5)) {
		t.Error("int 2 should not equal float 2.5")
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Null, false},
		{Bool(false), false},
		{Int(0), false},
		{Int(1), true},
		{Str(""), false},
		{Str("x"), true},
		{Arr(nil), false},
		{Arr([]Value{Int(1)}), true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Errorf("Truthy(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestUpvalueOpenAndClosed(t *testing.T) {
	stack := []Value{Int(10), Int(20)}
	u := &Upvalue{StackIdx: 1, Open: true}
	if got := u.Get(stack); got.Data.(int64) != 20 {
		t.Fatalf("expected open upvalue to read stack slot, got %+v", got)
	}
	u.Set(stack, Int(99))
	if stack[1].Data.(int64) != 99 {
		t.Fatal("open upvalue set should write through to the stack")
	}
	u.Open = false
	u.Closed = Int(7)
	if got := u.Get(stack); got.Data.(int64) != 7 {
		t.Fatal("closed upvalue should read its own Closed field")
	}
}
