package p2sh

import "testing"

func TestChunkAddConstantDedupesScalars(t *testing.T) {
	c := NewChunk("<test>")
	i1 := c.AddConstant(Int(42))
	i2 := c.AddConstant(Int(42))
	if i1 != i2 {
		t.Fatalf("expected repeated scalar constant to share an index, got %d and %d", i1, i2)
	}
	i3 := c.AddConstant(Str("42"))
	if i3 == i1 {
		t.Fatal("a string constant must not de-dup against an int constant of similar text")
	}
}

func TestChunkAddConstantNeverDedupesArrays(t *testing.T) {
	c := NewChunk("<test>")
	a := Arr([]Value{Int(1)})
	i1 := c.AddConstant(a)
	i2 := c.AddConstant(Arr([]Value{Int(1)}))
	if i1 == i2 {
		t.Fatal("reference-shared constants (arrays) must never be de-duped by value")
	}
}

func TestChunkU16RoundTrip(t *testing.T) {
	c := NewChunk("<test>")
	pos := c.emitU16(0x1234, 1)
	got := readU16(c.Code, pos)
	if got != 0x1234 {
		t.Fatalf("readU16 = 0x%x, want 0x1234", got)
	}
	patchU16(c.Code, pos, 0xABCD)
	if got := readU16(c.Code, pos); got != 0xABCD {
		t.Fatalf("after patch, readU16 = 0x%x, want 0xABCD", got)
	}
}

func TestChunkLineTableTracksLatestLine(t *testing.T) {
	c := NewChunk("<test>")
	c.emitOp(OpNull, 1)
	c.emitOp(OpNull, 1)
	posLine2 := c.emitOp(OpNull, 2)
	if got := c.LineAt(0); got != 1 {
		t.Errorf("LineAt(0) = %d, want 1", got)
	}
	if got := c.LineAt(posLine2); got != 2 {
		t.Errorf("LineAt(%d) = %d, want 2", posLine2, got)
	}
}

func TestChunkAddFunctionIndexesSeparatelyFromConstants(t *testing.T) {
	c := NewChunk("<test>")
	c.AddConstant(Int(1))
	fn := NewChunk("<fn>")
	idx := c.AddFunction(fn)
	if idx != 0 {
		t.Fatalf("expected first function template to get index 0, got %d", idx)
	}
	if len(c.Constants) != 1 {
		t.Fatal("AddFunction must not touch the Constants pool")
	}
}
