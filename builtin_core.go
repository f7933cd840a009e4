// builtin_core.go — numeric, type, and conversion primitives (§4.I).
//
// Grounded on the teacher's builtin_core.go RegisterNative(ip, "name", arity,
// fn) layout: one file per concern, each builtin a thin Go closure over
// Value, returning (Value, error) where error is a host-level failure and a
// script-visible failure is instead returned as an ErrorVal.
package p2sh

import (
	"fmt"
	"math"
	"os"
	"time"
)

func registerCoreBuiltins(r *BuiltinRegistry) {
	r.Register("type", 1, func(vm *VM, args []Value) (Value, error) {
		return Str(args[0].Tag.String()), nil
	})

	r.Register("is_error", 1, func(vm *VM, args []Value) (Value, error) {
		return Bool(args[0].Tag == TagError), nil
	})

	r.Register("int", 1, func(vm *VM, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TagInt:
			return v, nil
		case TagFloat:
			return Int(int64(v.Data.(float64))), nil
		case TagByte:
			return Int(int64(v.Data.(byte))), nil
		case TagChar:
			return Int(int64(v.Data.(rune))), nil
		case TagBool:
			if v.Data.(bool) {
				return Int(1), nil
			}
			return Int(0), nil
		case TagString:
			var n int64
			if _, err := fmt.Sscanf(v.Data.(string), "%d", &n); err != nil {
				return ErrorVal(0, fmt.Sprintf("cannot parse %q as int", v.Data.(string))), nil
			}
			return Int(n), nil
		default:
			return ErrorVal(0, fmt.Sprintf("cannot convert %s to int", v.Tag)), nil
		}
	})

	r.Register("float", 1, func(vm *VM, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TagFloat:
			return v, nil
		case TagInt:
			return Float(float64(v.Data.(int64))), nil
		case TagString:
			var f float64
			if _, err := fmt.Sscanf(v.Data.(string), "%g", &f); err != nil {
				return ErrorVal(0, fmt.Sprintf("cannot parse %q as float", v.Data.(string))), nil
			}
			return Float(f), nil
		default:
			return ErrorVal(0, fmt.Sprintf("cannot convert %s to float", v.Tag)), nil
		}
	})

	r.Register("str", 1, func(vm *VM, args []Value) (Value, error) {
		return Str(Display(args[0])), nil
	})

	r.Register("abs", 1, func(vm *VM, args []Value) (Value, error) {
		switch v := args[0]; v.Tag {
		case TagInt:
			n := v.Data.(int64)
			if n < 0 {
				n = -n
			}
			return Int(n), nil
		case TagFloat:
			return Float(math.Abs(v.Data.(float64))), nil
		default:
			return Null, fmt.Errorf("abs: expected a number, got %s", v.Tag)
		}
	})

	r.Register("min", 2, func(vm *VM, args []Value) (Value, error) {
		af, aok := asFloat(args[0])
		bf, bok := asFloat(args[1])
		if !aok || !bok {
			return Null, fmt.Errorf("min: expected numbers")
		}
		if af <= bf {
			return args[0], nil
		}
		return args[1], nil
	})

	r.Register("max", 2, func(vm *VM, args []Value) (Value, error) {
		af, aok := asFloat(args[0])
		bf, bok := asFloat(args[1])
		if !aok || !bok {
			return Null, fmt.Errorf("max: expected numbers")
		}
		if af >= bf {
			return args[0], nil
		}
		return args[1], nil
	})

	r.Register("floor", 1, func(vm *VM, args []Value) (Value, error) {
		f, ok := asFloat(args[0])
		if !ok {
			return Null, fmt.Errorf("floor: expected a number")
		}
		return Float(math.Floor(f)), nil
	})

	r.Register("ceil", 1, func(vm *VM, args []Value) (Value, error) {
		f, ok := asFloat(args[0])
		if !ok {
			return Null, fmt.Errorf("ceil: expected a number")
		}
		return Float(math.Ceil(f)), nil
	})

	r.Register("sqrt", 1, func(vm *VM, args []Value) (Value, error) {
		f, ok := asFloat(args[0])
		if !ok {
			return Null, fmt.Errorf("sqrt: expected a number")
		}
		return Float(math.Sqrt(f)), nil
	})

	r.Register("pow", 2, func(vm *VM, args []Value) (Value, error) {
		base, ok1 := asFloat(args[0])
		exp, ok2 := asFloat(args[1])
		if !ok1 || !ok2 {
			return Null, fmt.Errorf("pow: expected numbers")
		}
		return Float(math.Pow(base, exp)), nil
	})

	// print/eprint never append a trailing newline (Rust print!
	// convention); println/eprintln/puts do.
	r.Register("print", -1, func(vm *VM, args []Value) (Value, error) {
		return vm.writePrint(vm.Stdout, args, false)
	})

	r.Register("println", -1, func(vm *VM, args []Value) (Value, error) {
		return vm.writePrint(vm.Stdout, args, true)
	})

	// puts is an alias of println (AWK/script-convention trailing-newline
	// print), matching §8's "puts(...)" scenarios.
	r.Register("puts", -1, func(vm *VM, args []Value) (Value, error) {
		return vm.writePrint(vm.Stdout, args, true)
	})

	r.Register("eprint", -1, func(vm *VM, args []Value) (Value, error) {
		return vm.writePrint(vm.Stderr, args, false)
	})

	r.Register("eprintln", -1, func(vm *VM, args []Value) (Value, error) {
		return vm.writePrint(vm.Stderr, args, true)
	})

	// exit(n) terminates the process immediately with n & 0xff (§8 "Exit
	// code"), bypassing normal VM unwind.
	r.Register("exit", 1, func(vm *VM, args []Value) (Value, error) {
		n, ok := asInt(args[0])
		if !ok {
			return Null, fmt.Errorf("exit: argument must be an int")
		}
		os.Exit(int(n & 0xff))
		return Null, nil
	})

	r.Register("sleep", 1, func(vm *VM, args []Value) (Value, error) {
		secs, ok := asFloat(args[0])
		if !ok {
			return Null, fmt.Errorf("sleep: argument must be a number")
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return Null, nil
	})
}

// writePrint is shared by print/println/eprint/eprintln/puts: a format
// template (when the first argument is a string containing `{`) or a
// space-joined display form of every argument, newline-terminated when
// newline is true (§4.A, §6).
func (vm *VM) writePrint(f *File, args []Value, newline bool) (Value, error) {
	if f == nil || f.Writer == nil {
		return Null, nil
	}
	out, err := formatPrintArgs(args)
	if err != nil {
		return Null, vm.runtimeErr("%s", err)
	}
	if newline {
		out += "\n"
	}
	f.Writer.Write([]byte(out))
	return Null, nil
}
