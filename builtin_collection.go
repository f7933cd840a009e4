// builtin_collection.go — array/map primitives, including the higher-order
// functions that call back into the VM via VM.Call (§4.I).
//
// Grounded on the teacher's builtin_core.go higher-order builtins
// (map/filter/reduce over its tree-walked closures): here the callback is
// a Value of tag closure/builtin, invoked through VM.Call rather than the
// tree-walking interpreter's direct Eval recursion.
package p2sh

import "fmt"

func registerCollectionBuiltins(r *BuiltinRegistry) {
	r.Register("push", 2, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("push: first argument must be an array")
		}
		arr.Elems = append(arr.Elems, args[1])
		return args[0], nil
	})

	r.Register("pop", 1, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("pop: argument must be an array")
		}
		if len(arr.Elems) == 0 {
			return Null, nil
		}
		last := arr.Elems[len(arr.Elems)-1]
		arr.Elems = arr.Elems[:len(arr.Elems)-1]
		return last, nil
	})

	r.Register("keys", 1, func(vm *VM, args []Value) (Value, error) {
		m, ok := args[0].Data.(*MapObject)
		if !ok {
			return Null, fmt.Errorf("keys: argument must be a map")
		}
		out := make([]Value, len(m.Keys))
		for i, k := range m.Keys {
			out[i] = KeyToValue(k)
		}
		return Arr(out), nil
	})

	r.Register("values", 1, func(vm *VM, args []Value) (Value, error) {
		m, ok := args[0].Data.(*MapObject)
		if !ok {
			return Null, fmt.Errorf("values: argument must be a map")
		}
		out := make([]Value, len(m.Keys))
		for i, k := range m.Keys {
			out[i] = m.Entries[k]
		}
		return Arr(out), nil
	})

	r.Register("has", 2, func(vm *VM, args []Value) (Value, error) {
		m, ok := args[0].Data.(*MapObject)
		if !ok {
			return Null, fmt.Errorf("has: first argument must be a map")
		}
		_, found := m.Get(args[1])
		return Bool(found), nil
	})

	r.Register("delete", 2, func(vm *VM, args []Value) (Value, error) {
		m, ok := args[0].Data.(*MapObject)
		if !ok {
			return Null, fmt.Errorf("delete: first argument must be a map")
		}
		return Bool(m.Delete(args[1])), nil
	})

	r.Register("map", 2, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("map: first argument must be an array")
		}
		out := make([]Value, len(arr.Elems))
		for i, e := range arr.Elems {
			v, err := vm.Call(args[1], []Value{e})
			if err != nil {
				return Null, err
			}
			out[i] = v
		}
		return Arr(out), nil
	})

	r.Register("filter", 2, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("filter: first argument must be an array")
		}
		var out []Value
		for _, e := range arr.Elems {
			v, err := vm.Call(args[1], []Value{e})
			if err != nil {
				return Null, err
			}
			if Truthy(v) {
				out = append(out, e)
			}
		}
		if out == nil {
			out = []Value{}
		}
		return Arr(out), nil
	})

	r.Register("reduce", 3, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("reduce: first argument must be an array")
		}
		acc := args[2]
		for _, e := range arr.Elems {
			v, err := vm.Call(args[1], []Value{acc, e})
			if err != nil {
				return Null, err
			}
			acc = v
		}
		return acc, nil
	})

	r.Register("sort", 2, func(vm *VM, args []Value) (Value, error) {
		arr, ok := args[0].Data.(*Array)
		if !ok {
			return Null, fmt.Errorf("sort: first argument must be an array")
		}
		out := make([]Value, len(arr.Elems))
		copy(out, arr.Elems)
		var sortErr error
		insertionSort(out, func(a, b Value) bool {
			if sortErr != nil {
				return false
			}
			v, err := vm.Call(args[1], []Value{a, b})
			if err != nil {
				sortErr = err
				return false
			}
			return Truthy(v)
		})
		if sortErr != nil {
			return Null, sortErr
		}
		return Arr(out), nil
	})
}

// insertionSort avoids pulling in sort.Slice's reflection-based Less
// closure plumbing for a comparator that can itself fail (a VM.Call can
// error mid-sort); stable and fine for the packet-batch sizes this
// interpreter's scripts realistically sort.
func insertionSort(xs []Value, less func(a, b Value) bool) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && less(xs[j], xs[j-1]); j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}
