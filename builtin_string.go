// builtin_string.go — string/char/byte primitives (§4.I).
//
// Grounded on the teacher's builtin_strings.go: native functions operating
// on Go's UTF-8 string type directly, with []rune conversions at the
// boundary wherever p2sh indexes by character rather than by byte (§3
// "string").
package p2sh

import (
	"fmt"
	"strings"
)

func registerStringBuiltins(r *BuiltinRegistry) {
	r.Register("len", 1, func(vm *VM, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TagString:
			return Int(int64(len([]rune(v.Data.(string))))), nil
		case TagArray:
			return Int(int64(len(v.Data.(*Array).Elems))), nil
		case TagMap:
			return Int(int64(len(v.Data.(*MapObject).Keys))), nil
		default:
			return Null, fmt.Errorf("len: expected a string, array, or map, got %s", v.Tag)
		}
	})

	r.Register("upper", 1, func(vm *VM, args []Value) (Value, error) {
		return Str(strings.ToUpper(mustStr(args[0]))), nil
	})

	r.Register("lower", 1, func(vm *VM, args []Value) (Value, error) {
		return Str(strings.ToLower(mustStr(args[0]))), nil
	})

	r.Register("trim", 1, func(vm *VM, args []Value) (Value, error) {
		return Str(strings.TrimSpace(mustStr(args[0]))), nil
	})

	r.Register("split", 2, func(vm *VM, args []Value) (Value, error) {
		parts := strings.Split(mustStr(args[0]), mustStr(args[1]))
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = Str(p)
		}
		return Arr(out), nil
	})

	r.Register("join", 2, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("join: first argument must be an array")
		}
		sep := mustStr(args[1])
		parts := make([]string, len(arr.Elems))
		for i, e := range arr.Elems {
			parts[i] = Display(e)
		}
		return Str(strings.Join(parts, sep)), nil
	})

	r.Register("contains", 2, func(vm *VM, args []Value) (Value, error) {
		return Bool(strings.Contains(mustStr(args[0]), mustStr(args[1]))), nil
	})

	r.Register("starts_with", 2, func(vm *VM, args []Value) (Value, error) {
		return Bool(strings.HasPrefix(mustStr(args[0]), mustStr(args[1]))), nil
	})

	r.Register("ends_with", 2, func(vm *VM, args []Value) (Value, error) {
		return Bool(strings.HasSuffix(mustStr(args[0]), mustStr(args[1]))), nil
	})

	r.Register("replace", 3, func(vm *VM, args []Value) (Value, error) {
		return Str(strings.ReplaceAll(mustStr(args[0]), mustStr(args[1]), mustStr(args[2]))), nil
	})

	r.Register("slice", 3, func(vm *VM, args []Value) (Value, error) {
		s := []rune(mustStr(args[0]))
		from, ok1 := asInt(args[1])
		to, ok2 := asInt(args[2])
		if !ok1 || !ok2 {
			return Null, fmt.Errorf("slice: bounds must be ints")
		}
		if from < 0 {
			from = 0
		}
		if to > int64(len(s)) {
			to = int64(len(s))
		}
		if from > to {
			return Str(""), nil
		}
		return Str(string(s[from:to])), nil
	})

	r.Register("format", -1, func(vm *VM, args []Value) (Value, error) {
		if len(args) < 1 || args[0].Tag != TagString {
			return Null, fmt.Errorf("format: first argument must be a string spec")
		}
		spec := args[0].Data.(string)
		out, err := FormatArgs(spec, args[1:])
		if err != nil {
			return Null, vm.runtimeErr("%s", err)
		}
		return Str(out), nil
	})

	r.Register("chars", 1, func(vm *VM, args []Value) (Value, error) {
		runes := []rune(mustStr(args[0]))
		out := make([]Value, len(runes))
		for i, r := range runes {
			out[i] = Char(r)
		}
		return Arr(out), nil
	})

	r.Register("bytes", 1, func(vm *VM, args []Value) (Value, error) {
		raw := []byte(mustStr(args[0]))
		out := make([]Value, len(raw))
		for i, b := range raw {
			out[i] = Byte(b)
		}
		return Arr(out), nil
	})
}

func mustStr(v Value) string {
	if v.Tag == TagString {
		return v.Data.(string)
	}
	return Display(v)
}
