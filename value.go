// value.go — the tagged runtime value and heap object system (§3).
package p2sh

import (
	"fmt"
	"math"
)

// ValueTag discriminates the variants of Value.
type ValueTag int

const (
	TagNull ValueTag = iota
	TagBool
	TagInt
	TagFloat
	TagChar
	TagByte
	TagString
	TagArray
	TagMap
	TagClosure
	TagBuiltin
	TagFile
	TagPacket
	TagLayer
	TagError
)

func (t ValueTag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagChar:
		return "char"
	case TagByte:
		return "byte"
	case TagString:
		return "string"
	case TagArray:
		return "array"
	case TagMap:
		return "map"
	case TagClosure:
		return "closure"
	case TagBuiltin:
		return "builtin"
	case TagFile:
		return "file"
	case TagPacket:
		return "packet"
	case TagLayer:
		return "layer"
	case TagError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is the tagged sum type every p2sh expression evaluates to. Data
// holds the tag-specific payload: nil for null, bool/int64/float64/rune/
// byte/string for scalars, and a shared pointer to a heap object for
// array/map/closure/builtin/file/packet/error.
type Value struct {
	Tag  ValueTag
	Data interface{}
}

var Null = Value{Tag: TagNull}

func Bool(b bool) Value   { return Value{Tag: TagBool, Data: b} }
func Int(n int64) Value   { return Value{Tag: TagInt, Data: n} }
func Float(f float64) Value { return Value{Tag: TagFloat, Data: f} }
func Char(r rune) Value   { return Value{Tag: TagChar, Data: r} }
func Byte(b byte) Value   { return Value{Tag: TagByte, Data: b} }
func Str(s string) Value  { return Value{Tag: TagString, Data: s} }

// Array is the shared, mutable, ordered sequence backing an array value.
type Array struct {
	Elems []Value
}

func Arr(xs []Value) Value { return Value{Tag: TagArray, Data: &Array{Elems: xs}} }

// MapObject is the shared, mutable, insertion-tracked map backing a map
// value. Keys are restricted to the hashable subset of Value (§3); Keys
// preserves insertion order for deterministic iteration/display (§5).
type MapObject struct {
	Entries map[MapKey]Value
	Keys    []MapKey
}

// MapKey is a canonical, comparable Go encoding of a hashable Value,
// letting MapObject.Entries be a plain Go map. +0.0/-0.0 collide by
// canonicalizing float zero's sign bit away; NaN has no MapKey (NewMapKey
// reports ok=false for it).
type MapKey struct {
	Tag ValueTag
	I   int64
	F   float64
	S   string
}

// NewMapKey converts a hashable Value into its canonical MapKey, or
// reports ok=false if v is not a hashable tag (array, map, file, packet).
func NewMapKey(v Value) (MapKey, bool) {
	switch v.Tag {
	case TagInt:
		return MapKey{Tag: TagInt, I: v.Data.(int64)}, true
	case TagFloat:
		f := v.Data.(float64)
		if math.IsNaN(f) {
			return MapKey{}, false
		}
		if f == 0 {
			f = 0 // canonicalize -0.0 to +0.0
		}
		return MapKey{Tag: TagFloat, F: f}, true
	case TagBool:
		var i int64
		if v.Data.(bool) {
			i = 1
		}
		return MapKey{Tag: TagBool, I: i}, true
	case TagChar:
		return MapKey{Tag: TagChar, I: int64(v.Data.(rune))}, true
	case TagByte:
		return MapKey{Tag: TagByte, I: int64(v.Data.(byte))}, true
	case TagString:
		return MapKey{Tag: TagString, S: v.Data.(string)}, true
	case TagBuiltin:
		return MapKey{Tag: TagBuiltin, S: v.Data.(*Builtin).Name}, true
	default:
		return MapKey{}, false
	}
}

// KeyToValue reconstructs a display-able Value from a MapKey (used when
// iterating a map for display or for-each semantics).
func KeyToValue(k MapKey) Value {
	switch k.Tag {
	case TagInt:
		return Int(k.I)
	case TagFloat:
		return Float(k.F)
	case TagBool:
		return Bool(k.I != 0)
	case TagChar:
		return Char(rune(k.I))
	case TagByte:
		return Byte(byte(k.I))
	case TagString:
		return Str(k.S)
	default:
		return Null
	}
}

func NewMap() *MapObject {
	return &MapObject{Entries: map[MapKey]Value{}}
}

func (m *MapObject) Set(key Value, val Value) error {
	k, ok := NewMapKey(key)
	if !ok {
		return fmt.Errorf("unhashable map key of type %s", key.Tag)
	}
	if _, exists := m.Entries[k]; !exists {
		m.Keys = append(m.Keys, k)
	}
	m.Entries[k] = val
	return nil
}

func (m *MapObject) Get(key Value) (Value, bool) {
	k, ok := NewMapKey(key)
	if !ok {
		return Null, false
	}
	v, found := m.Entries[k]
	return v, found
}

func (m *MapObject) Delete(key Value) bool {
	k, ok := NewMapKey(key)
	if !ok {
		return false
	}
	if _, found := m.Entries[k]; !found {
		return false
	}
	delete(m.Entries, k)
	for i, kk := range m.Keys {
		if kk == k {
			m.Keys = append(m.Keys[:i], m.Keys[i+1:]...)
			break
		}
	}
	return true
}

func MapVal(m *MapObject) Value { return Value{Tag: TagMap, Data: m} }

// Upvalue is a single captured binding: open while the defining local is
// still live on the VM's evaluation stack, closed (hoisted to Closed) once
// the enclosing frame returns (§9 closures & upvalues).
type Upvalue struct {
	StackIdx int    // absolute stack index, meaningful only while Open
	Open     bool
	Closed   Value
}

func (u *Upvalue) Get(stack []Value) Value {
	if u.Open {
		return stack[u.StackIdx]
	}
	return u.Closed
}

func (u *Upvalue) Set(stack []Value, v Value) {
	if u.Open {
		stack[u.StackIdx] = v
		return
	}
	u.Closed = v
}

// Closure is a chunk plus its captured upvalues (§3 "Closure object").
type Closure struct {
	Chunk     *Chunk
	Upvalues  []*Upvalue
}

func ClosureVal(c *Closure) Value { return Value{Tag: TagClosure, Data: c} }

// Builtin is an opaque handle to a native primitive, resolved at compile
// time by a fixed registry index (§4.D "Built-ins").
type Builtin struct {
	Name string
	Arity int // -1 for variadic
	Fn    func(vm *VM, args []Value) (Value, error)
}

func BuiltinVal(b *Builtin) Value { return Value{Tag: TagBuiltin, Data: b} }

// FileMode enumerates how a File was opened.
type FileMode int

const (
	ModeRead FileMode = iota
	ModeWrite
	ModeAppend
	ModeReadWrite
)

// File is an open file descriptor with a mode (§3 "file"). Closed is set
// once the handle is released so double-close/use-after-close are
// detected rather than silently misbehaving.
type File struct {
	Name   string
	Mode   FileMode
	Reader interface {
		Read(p []byte) (int, error)
	}
	Writer interface {
		Write(p []byte) (int, error)
		Sync() error
	}
	Closer interface{ Close() error }
	Closed bool
	IsPcap bool
	Pcap   *PcapStream
}

func FileVal(f *File) Value { return Value{Tag: TagFile, Data: f} }

// ErrorObject is an OS-errno-plus-message pair, recognizable in script by
// `is_error` (§3 "error").
type ErrorObject struct {
	Errno   int
	Message string
}

func ErrorVal(errno int, msg string) Value {
	return Value{Tag: TagError, Data: &ErrorObject{Errno: errno, Message: msg}}
}

// Truthy implements §3's truthiness table.
func Truthy(v Value) bool {
	switch v.Tag {
	case TagNull:
		return false
	case TagBool:
		return v.Data.(bool)
	case TagInt:
		return v.Data.(int64) != 0
	case TagFloat:
		return v.Data.(float64) != 0
	case TagChar:
		return v.Data.(rune) != 0
	case TagByte:
		return v.Data.(byte) != 0
	case TagString:
		return v.Data.(string) != ""
	case TagArray:
		return len(v.Data.(*Array).Elems) != 0
	case TagMap:
		return len(v.Data.(*MapObject).Keys) != 0
	default:
		return true
	}
}

// ValuesEqual implements §3's equality rule: structural for scalars,
// strings, arrays, maps; identity for closures, files, packets, builtins.
func ValuesEqual(a, b Value) bool {
	if a.Tag != b.Tag {
		if isNumeric(a.Tag) && isNumeric(b.Tag) {
			af, aok := asFloat(a)
			bf, bok := asFloat(b)
			return aok && bok && af == bf
		}
		return false
	}
	switch a.Tag {
	case TagNull:
		return true
	case TagBool:
		return a.Data.(bool) == b.Data.(bool)
	case TagInt:
		return a.Data.(int64) == b.Data.(int64)
	case TagFloat:
		return a.Data.(float64) == b.Data.(float64)
	case TagChar:
		return a.Data.(rune) == b.Data.(rune)
	case TagByte:
		return a.Data.(byte) == b.Data.(byte)
	case TagString:
		return a.Data.(string) == b.Data.(string)
	case TagArray:
		aa, bb := a.Data.(*Array), b.Data.(*Array)
		if len(aa.Elems) != len(bb.Elems) {
			return false
		}
		for i := range aa.Elems {
			if !ValuesEqual(aa.Elems[i], bb.Elems[i]) {
				return false
			}
		}
		return true
	case TagMap:
		am, bm := a.Data.(*MapObject), b.Data.(*MapObject)
		if len(am.Keys) != len(bm.Keys) {
			return false
		}
		for k, v := range am.Entries {
			bv, ok := bm.Entries[k]
			if !ok || !ValuesEqual(v, bv) {
				return false
			}
		}
		return true
	default:
		// closures, builtins, files, packets: identity
		return a.Data == b.Data
	}
}

func isNumeric(t ValueTag) bool { return t == TagInt || t == TagFloat }

func asFloat(v Value) (float64, bool) {
	switch v.Tag {
	case TagInt:
		return float64(v.Data.(int64)), true
	case TagFloat:
		return v.Data.(float64), true
	default:
		return 0, false
	}
}
