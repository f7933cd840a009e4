// vm.go — the stack machine that executes compiled chunks (§4.H).
//
// Grounded on the teacher's frame/stack shape in vm.go (a flat value stack,
// explicit call frames, a dispatch switch over opcodes) generalized from the
// teacher's minimal non-closure VM to p2sh's full closure/upvalue model
// (§4.D, §4.G). The run loop, frame struct, and error-as-value plumbing
// follow the same "decode operand, mutate stack, advance ip" shape the
// teacher's vm.go uses for its much smaller opcode set.
package p2sh

import (
	"fmt"
	"math"
)

// maxFrames bounds call depth; recursion beyond this raises a RuntimeError
// rather than exhausting the host stack (Open Question, resolved in
// SPEC_FULL.md: 2048 frames).
const maxFrames = 2048

// Frame is one activation record: the executing closure, its instruction
// pointer, and the stack index its local slot 0 lives at.
type Frame struct {
	Closure *Closure
	IP      int
	Base    int
}

// VM is the whole execution state for one compiled program: the value
// stack, the frame stack, the open-upvalue list (kept sorted by ascending
// StackIdx so closing a range is a simple scan), and the global slot table.
type VM struct {
	stack  []Value
	frames []Frame

	openUpvalues []*Upvalue

	globals []Value
	prog    *CompiledProgram
	builtins *BuiltinRegistry

	Stdin  *File
	Stdout *File
	Stderr *File

	// PcapOut is the default output stream §4.J's synthesized filter body
	// (OpEmit) writes packets to; nil when the program was not run as a
	// packet filter.
	PcapOut *PcapStream

	// LastErrno is the errno of the most recent failing I/O primitive,
	// the single writable cell get_errno() reads (§7).
	LastErrno int
}

// NewVM builds a VM ready to run prog, with globals sized to
// prog.NumGlobals and the three standard streams wired to the given
// stdin/stdout/stderr files (the filter driver additionally sets PcapOut).
func NewVM(prog *CompiledProgram, builtins *BuiltinRegistry, stdin, stdout, stderr *File) *VM {
	vm := &VM{
		prog:     prog,
		builtins: builtins,
		globals:  make([]Value, prog.NumGlobals),
		stack:    make([]Value, 0, 256),
		Stdin:    stdin,
		Stdout:   stdout,
		Stderr:   stderr,
	}
	for name, idx := range prog.AmbientVar {
		switch name {
		case "stdin":
			vm.setGlobal(idx, FileVal(stdin))
		case "stdout":
			vm.setGlobal(idx, FileVal(stdout))
		case "stderr":
			vm.setGlobal(idx, FileVal(stderr))
		}
	}
	return vm
}

func (vm *VM) runtimeErr(format string, args ...interface{}) error {
	line, col := 0, 0
	if n := len(vm.frames); n > 0 {
		fr := &vm.frames[n-1]
		line = fr.Closure.Chunk.LineAt(fr.IP)
	}
	return &RuntimeError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack)
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) peek(back int) Value { return vm.stack[len(vm.stack)-1-back] }

// Run executes the top-level chunk to completion and returns its tail
// value (or the first uncaught runtime error).
func (vm *VM) Run() (Value, error) {
	top := &Closure{Chunk: vm.prog.Top}
	return vm.callAndRun(top, nil)
}

// RunChunk executes an arbitrary zero-arg chunk (used by the filter driver
// to invoke a pattern/body FilterUnit against the current global state).
func (vm *VM) RunChunk(c *Chunk) (Value, error) {
	return vm.callAndRun(&Closure{Chunk: c}, nil)
}

func (vm *VM) callAndRun(cl *Closure, args []Value) (Value, error) {
	baseFrame := len(vm.frames)
	if err := vm.pushFrame(cl, args); err != nil {
		return Null, err
	}
	return vm.run(baseFrame)
}

func (vm *VM) pushFrame(cl *Closure, args []Value) error {
	if len(vm.frames) >= maxFrames {
		return vm.runtimeErr("stack overflow: exceeded %d call frames", maxFrames)
	}
	base := len(vm.stack)
	vm.stack = append(vm.stack, args...)
	for i := len(args); i < cl.Chunk.NumLocals; i++ {
		vm.push(Null)
	}
	vm.frames = append(vm.frames, Frame{Closure: cl, Base: base})
	return nil
}

// run drives the fetch-decode-execute loop until the frame stack unwinds
// back to stopAt, returning the value left on top of the stack.
func (vm *VM) run(stopAt int) (Value, error) {
	for {
		fr := &vm.frames[len(vm.frames)-1]
		code := fr.Closure.Chunk.Code
		if fr.IP >= len(code) {
			return Null, vm.runtimeErr("fell off the end of %q without a return", fr.Closure.Chunk.Name)
		}
		op := Op(code[fr.IP])
		fr.IP++

		switch op {
		case OpConstant:
			idx := vm.readU16(fr)
			vm.push(fr.Closure.Chunk.Constants[idx])

		case OpNull:
			vm.push(Null)
		case OpTrue:
			vm.push(Bool(true))
		case OpFalse:
			vm.push(Bool(false))
		case OpPop:
			vm.pop()
		case OpDup:
			vm.push(vm.peek(0))

		case OpGetLocal:
			idx := vm.readU16(fr)
			vm.push(vm.stack[fr.Base+idx])
		case OpSetLocal:
			idx := vm.readU16(fr)
			vm.stack[fr.Base+idx] = vm.peek(0)

		case OpGetGlobal:
			idx := vm.readU16(fr)
			vm.push(vm.globalAt(idx))
		case OpSetGlobal:
			idx := vm.readU16(fr)
			vm.setGlobal(idx, vm.peek(0))

		case OpGetUpvalue:
			idx := vm.readU16(fr)
			vm.push(fr.Closure.Upvalues[idx].Get(vm.stack))
		case OpSetUpvalue:
			idx := vm.readU16(fr)
			fr.Closure.Upvalues[idx].Set(vm.stack, vm.peek(0))

		case OpGetBuiltin:
			idx := vm.readU16(fr)
			vm.push(BuiltinVal(vm.builtins.At(idx)))

		case OpGetIndex:
			idx := vm.pop()
			recv := vm.pop()
			v, err := vm.getIndex(recv, idx)
			if err != nil {
				return Null, err
			}
			vm.push(v)
		case OpSetIndex:
			val := vm.pop()
			idx := vm.pop()
			recv := vm.pop()
			if err := vm.setIndex(recv, idx, val); err != nil {
				return Null, err
			}
			vm.push(val)

		case OpGetProperty:
			nameIdx := vm.readU16(fr)
			name := fr.Closure.Chunk.Constants[nameIdx].Data.(string)
			recv := vm.pop()
			v, err := vm.getProperty(recv, name)
			if err != nil {
				return Null, err
			}
			vm.push(v)
		case OpSetProperty:
			nameIdx := vm.readU16(fr)
			name := fr.Closure.Chunk.Constants[nameIdx].Data.(string)
			val := vm.pop()
			recv := vm.pop()
			if err := vm.setProperty(recv, name, val); err != nil {
				return Null, err
			}
			vm.push(val)

		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.arith(op, a, b)
			if err != nil {
				return Null, err
			}
			vm.push(v)

		case OpNeg:
			a := vm.pop()
			v, err := vm.negate(a)
			if err != nil {
				return Null, err
			}
			vm.push(v)
		case OpNot:
			vm.push(Bool(!Truthy(vm.pop())))

		case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.bitop(op, a, b)
			if err != nil {
				return Null, err
			}
			vm.push(v)
		case OpBitNot:
			a := vm.pop()
			i, ok := asInt(a)
			if !ok {
				return Null, vm.runtimeErr("~ requires an int, got %s", a.Tag)
			}
			vm.push(Int(^i))

		case OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(ValuesEqual(a, b)))
		case OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!ValuesEqual(a, b)))
		case OpLt, OpLe, OpGt, OpGe:
			b := vm.pop()
			a := vm.pop()
			v, err := vm.compare(op, a, b)
			if err != nil {
				return Null, err
			}
			vm.push(v)

		case OpJump:
			target := vm.readU16(fr)
			fr.IP = target
		case OpJumpIfFalse:
			target := vm.readU16(fr)
			if !Truthy(vm.pop()) {
				fr.IP = target
			}
		case OpJumpIfFalseNoPop:
			target := vm.readU16(fr)
			if !Truthy(vm.peek(0)) {
				fr.IP = target
			}
		case OpJumpIfTrueNoPop:
			target := vm.readU16(fr)
			if Truthy(vm.peek(0)) {
				fr.IP = target
			}

		case OpCall:
			argc := vm.readU16(fr)
			if err := vm.call(argc); err != nil {
				return Null, err
			}

		case OpReturn:
			ret := vm.pop()
			vm.closeUpvaluesFrom(fr.Base)
			vm.stack = vm.stack[:fr.Base]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == stopAt {
				return ret, nil
			}
			vm.push(ret)

		case OpClosure:
			fnIdx := vm.readU16(fr)
			nUp := vm.readU16(fr)
			template := fr.Closure.Chunk.Functions[fnIdx]
			ups := make([]*Upvalue, nUp)
			for i := 0; i < nUp; i++ {
				isLocal := code[fr.IP] != 0
				fr.IP++
				index := vm.readU16(fr)
				if isLocal {
					ups[i] = vm.captureUpvalue(fr.Base + index)
				} else {
					ups[i] = fr.Closure.Upvalues[index]
				}
			}
			vm.push(ClosureVal(&Closure{Chunk: template, Upvalues: ups}))

		case OpCloseUpvalue:
			idx := vm.readU16(fr)
			vm.closeUpvaluesFrom(fr.Base + idx)

		case OpArray:
			n := vm.readU16(fr)
			elems := make([]Value, n)
			copy(elems, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(Arr(elems))

		case OpMap:
			n := vm.readU16(fr)
			m := NewMap()
			base := len(vm.stack) - 2*n
			for i := 0; i < n; i++ {
				k := vm.stack[base+2*i]
				v := vm.stack[base+2*i+1]
				if err := m.Set(k, v); err != nil {
					return Null, vm.runtimeErr("%s", err)
				}
			}
			vm.stack = vm.stack[:base]
			vm.push(MapVal(m))

		case OpRange, OpRangeInclusive:
			to := vm.pop()
			from := vm.pop()
			fi, ok1 := asInt(from)
			ti, ok2 := asInt(to)
			if !ok1 || !ok2 {
				return Null, vm.runtimeErr("range bounds must be int")
			}
			elems := buildRange(fi, ti, op == OpRangeInclusive)
			vm.push(Arr(elems))

		case OpEmit:
			if err := vm.emitCurrentPacket(); err != nil {
				return Null, err
			}

		default:
			return Null, vm.runtimeErr("unimplemented opcode %s", op)
		}
	}
}

func (vm *VM) readU16(fr *Frame) int {
	v := readU16(fr.Closure.Chunk.Code, fr.IP)
	fr.IP += 2
	return v
}

func (vm *VM) globalAt(idx int) Value {
	if idx < len(vm.globals) {
		return vm.globals[idx]
	}
	return Null
}

func (vm *VM) setGlobal(idx int, v Value) {
	if idx >= len(vm.globals) {
		grown := make([]Value, idx+1)
		copy(grown, vm.globals)
		vm.globals = grown
	}
	vm.globals[idx] = v
}

func buildRange(from, to int64, inclusive bool) []Value {
	if inclusive {
		if to < from {
			return []Value{}
		}
		out := make([]Value, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, Int(i))
		}
		return out
	}
	if to <= from {
		return []Value{}
	}
	out := make([]Value, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, Int(i))
	}
	return out
}

// captureUpvalue returns the open Upvalue for stack slot idx, creating and
// inserting it (kept sorted ascending by StackIdx) if none exists yet.
func (vm *VM) captureUpvalue(idx int) *Upvalue {
	for _, u := range vm.openUpvalues {
		if u.StackIdx == idx {
			return u
		}
	}
	u := &Upvalue{StackIdx: idx, Open: true}
	pos := len(vm.openUpvalues)
	for pos > 0 && vm.openUpvalues[pos-1].StackIdx > idx {
		pos--
	}
	vm.openUpvalues = append(vm.openUpvalues, nil)
	copy(vm.openUpvalues[pos+1:], vm.openUpvalues[pos:])
	vm.openUpvalues[pos] = u
	return u
}

// closeUpvaluesFrom hoists every open upvalue at or above idx into its
// Closed field and drops it from the open list, since the locals backing
// it are about to leave the stack.
func (vm *VM) closeUpvaluesFrom(idx int) {
	kept := vm.openUpvalues[:0]
	for _, u := range vm.openUpvalues {
		if u.StackIdx >= idx {
			u.Closed = vm.stack[u.StackIdx]
			u.Open = false
		} else {
			kept = append(kept, u)
		}
	}
	vm.openUpvalues = kept
}

// call implements OpCall: the stack holds [..., callee, arg1..argN] with
// N == argc; dispatch on the callee's tag.
func (vm *VM) call(argc int) error {
	calleeIdx := len(vm.stack) - argc - 1
	callee := vm.stack[calleeIdx]
	args := append([]Value(nil), vm.stack[calleeIdx+1:]...)

	switch callee.Tag {
	case TagClosure:
		cl := callee.Data.(*Closure)
		if argc != cl.Chunk.Arity {
			return vm.runtimeErr("%s expects %d argument(s), got %d", cl.Chunk.Name, cl.Chunk.Arity, argc)
		}
		vm.stack = vm.stack[:calleeIdx]
		return vm.pushFrame(cl, args)

	case TagBuiltin:
		b := callee.Data.(*Builtin)
		if b.Arity >= 0 && argc != b.Arity {
			return vm.runtimeErr("%s expects %d argument(s), got %d", b.Name, b.Arity, argc)
		}
		vm.stack = vm.stack[:calleeIdx]
		ret, err := b.Fn(vm, args)
		if err != nil {
			return err
		}
		vm.push(ret)
		return nil

	default:
		return vm.runtimeErr("value of type %s is not callable", callee.Tag)
	}
}

// Call lets native builtins invoke a script-level closure (map/filter/sort
// callbacks and similar higher-order primitives).
func (vm *VM) Call(callee Value, args []Value) (Value, error) {
	switch callee.Tag {
	case TagClosure:
		cl := callee.Data.(*Closure)
		if len(args) != cl.Chunk.Arity {
			return Null, vm.runtimeErr("%s expects %d argument(s), got %d", cl.Chunk.Name, cl.Chunk.Arity, len(args))
		}
		return vm.callAndRun(cl, args)
	case TagBuiltin:
		b := callee.Data.(*Builtin)
		if b.Arity >= 0 && len(args) != b.Arity {
			return Null, vm.runtimeErr("%s expects %d argument(s), got %d", b.Name, b.Arity, len(args))
		}
		return b.Fn(vm, args)
	default:
		return Null, vm.runtimeErr("value of type %s is not callable", callee.Tag)
	}
}

func (vm *VM) negate(a Value) (Value, error) {
	switch a.Tag {
	case TagInt:
		return Int(-a.Data.(int64)), nil
	case TagFloat:
		return Float(-a.Data.(float64)), nil
	default:
		return Null, vm.runtimeErr("unary - requires a number, got %s", a.Tag)
	}
}

func asInt(v Value) (int64, bool) {
	switch v.Tag {
	case TagInt:
		return v.Data.(int64), true
	case TagByte:
		return int64(v.Data.(byte)), true
	case TagChar:
		return int64(v.Data.(rune)), true
	default:
		return 0, false
	}
}

func (vm *VM) arith(op Op, a, b Value) (Value, error) {
	if op == OpAdd && a.Tag == TagString || op == OpAdd && b.Tag == TagString {
		if a.Tag == TagString && b.Tag == TagString {
			return Str(a.Data.(string) + b.Data.(string)), nil
		}
		if isNumeric(otherTag(a, b)) {
			return Str(Display(a) + Display(b)), nil
		}
		return Null, vm.runtimeErr("+ between string and %s requires both operands to be strings", otherTag(a, b))
	}
	if a.Tag == TagArray && b.Tag == TagArray && op == OpAdd {
		aa, bb := a.Data.(*Array), b.Data.(*Array)
		out := make([]Value, 0, len(aa.Elems)+len(bb.Elems))
		out = append(out, aa.Elems...)
		out = append(out, bb.Elems...)
		return Arr(out), nil
	}
	if a.Tag == TagInt && b.Tag == TagInt {
		x, y := a.Data.(int64), b.Data.(int64)
		switch op {
		case OpAdd:
			return Int(x + y), nil
		case OpSub:
			return Int(x - y), nil
		case OpMul:
			return Int(x * y), nil
		case OpDiv:
			if y == 0 {
				return Null, vm.runtimeErr("division by zero")
			}
			return Int(x / y), nil
		case OpMod:
			if y == 0 {
				return Null, vm.runtimeErr("division by zero")
			}
			return Int(x % y), nil
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return Null, vm.runtimeErr("arithmetic requires numbers, got %s and %s", a.Tag, b.Tag)
	}
	switch op {
	case OpAdd:
		return Float(af + bf), nil
	case OpSub:
		return Float(af - bf), nil
	case OpMul:
		return Float(af * bf), nil
	case OpDiv:
		if bf == 0 {
			return Null, vm.runtimeErr("division by zero")
		}
		return Float(af / bf), nil
	case OpMod:
		if bf == 0 {
			return Null, vm.runtimeErr("division by zero")
		}
		return Float(math.Mod(af, bf)), nil
	}
	return Null, vm.runtimeErr("unreachable arithmetic op")
}

func otherTag(a, b Value) ValueTag {
	if a.Tag == TagString {
		return b.Tag
	}
	return a.Tag
}

func (vm *VM) bitop(op Op, a, b Value) (Value, error) {
	x, ok1 := asInt(a)
	y, ok2 := asInt(b)
	if !ok1 || !ok2 {
		return Null, vm.runtimeErr("bitwise operator requires ints, got %s and %s", a.Tag, b.Tag)
	}
	switch op {
	case OpBitAnd:
		return Int(x & y), nil
	case OpBitOr:
		return Int(x | y), nil
	case OpBitXor:
		return Int(x ^ y), nil
	case OpShl:
		return Int(x << uint(y)), nil
	case OpShr:
		return Int(x >> uint(y)), nil
	}
	return Null, vm.runtimeErr("unreachable bitwise op")
}

func (vm *VM) compare(op Op, a, b Value) (Value, error) {
	if a.Tag == TagString && b.Tag == TagString {
		x, y := a.Data.(string), b.Data.(string)
		switch op {
		case OpLt:
			return Bool(x < y), nil
		case OpLe:
			return Bool(x <= y), nil
		case OpGt:
			return Bool(x > y), nil
		case OpGe:
			return Bool(x >= y), nil
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return Null, vm.runtimeErr("comparison requires numbers or strings, got %s and %s", a.Tag, b.Tag)
	}
	switch op {
	case OpLt:
		return Bool(af < bf), nil
	case OpLe:
		return Bool(af <= bf), nil
	case OpGt:
		return Bool(af > bf), nil
	case OpGe:
		return Bool(af >= bf), nil
	}
	return Null, vm.runtimeErr("unreachable comparison op")
}

func (vm *VM) getIndex(recv, idx Value) (Value, error) {
	switch recv.Tag {
	case TagArray:
		arr := recv.Data.(*Array)
		i, ok := asInt(idx)
		if !ok {
			return Null, vm.runtimeErr("array index must be an int, got %s", idx.Tag)
		}
		if i < 0 || int(i) >= len(arr.Elems) {
			return Null, vm.runtimeErr("array index %d out of range (len %d)", i, len(arr.Elems))
		}
		return arr.Elems[i], nil
	case TagMap:
		m := recv.Data.(*MapObject)
		v, ok := m.Get(idx)
		if !ok {
			return Null, nil
		}
		return v, nil
	case TagString:
		s := recv.Data.(string)
		runes := []rune(s)
		i, ok := asInt(idx)
		if !ok || i < 0 || int(i) >= len(runes) {
			return Null, vm.runtimeErr("string index %v out of range", idx)
		}
		return Char(runes[i]), nil
	default:
		return Null, vm.runtimeErr("value of type %s is not indexable", recv.Tag)
	}
}

func (vm *VM) setIndex(recv, idx, val Value) error {
	switch recv.Tag {
	case TagArray:
		arr := recv.Data.(*Array)
		i, ok := asInt(idx)
		if !ok {
			return vm.runtimeErr("array index must be an int, got %s", idx.Tag)
		}
		if i < 0 || int(i) >= len(arr.Elems) {
			return vm.runtimeErr("array index %d out of range (len %d)", i, len(arr.Elems))
		}
		arr.Elems[i] = val
		return nil
	case TagMap:
		m := recv.Data.(*MapObject)
		if err := m.Set(idx, val); err != nil {
			return vm.runtimeErr("%s", err)
		}
		return nil
	default:
		return vm.runtimeErr("value of type %s does not support index assignment", recv.Tag)
	}
}

func (vm *VM) getProperty(recv Value, name string) (Value, error) {
	switch recv.Tag {
	case TagMap:
		m := recv.Data.(*MapObject)
		v, ok := m.Get(Str(name))
		if !ok {
			return Null, nil
		}
		return v, nil
	case TagError:
		e := recv.Data.(*ErrorObject)
		switch name {
		case "errno":
			return Int(int64(e.Errno)), nil
		case "message":
			return Str(e.Message), nil
		}
		return Null, vm.runtimeErr("error has no property %q", name)
	case TagArray:
		arr := recv.Data.(*Array)
		if name == "len" {
			return Int(int64(len(arr.Elems))), nil
		}
		return Null, vm.runtimeErr("array has no property %q", name)
	case TagString:
		if name == "len" {
			return Int(int64(len([]rune(recv.Data.(string))))), nil
		}
		return Null, vm.runtimeErr("string has no property %q", name)
	case TagPacket:
		v, err := packetProperty(recv.Data.(*Packet), name)
		if err != nil {
			return Null, vm.runtimeErr("%s", err)
		}
		return v, nil
	case TagLayer:
		v, err := recv.Data.(*LayerView).Get(name)
		if err != nil {
			return Null, vm.runtimeErr("%s", err)
		}
		return v, nil
	case TagFile:
		f := recv.Data.(*File)
		switch name {
		case "name":
			return Str(f.Name), nil
		case "closed":
			return Bool(f.Closed), nil
		}
		if f.IsPcap && f.Pcap != nil {
			v, ok, err := pcapHeaderProperty(&f.Pcap.Header, name)
			if err != nil {
				return Null, vm.runtimeErr("%s", err)
			}
			if ok {
				return v, nil
			}
		}
		return Null, vm.runtimeErr("file has no property %q", name)
	default:
		return Null, vm.runtimeErr("value of type %s has no properties", recv.Tag)
	}
}

func (vm *VM) setProperty(recv Value, name string, val Value) error {
	switch recv.Tag {
	case TagMap:
		m := recv.Data.(*MapObject)
		if err := m.Set(Str(name), val); err != nil {
			return vm.runtimeErr("%s", err)
		}
		return nil
	case TagPacket:
		if err := setPacketProperty(recv.Data.(*Packet), name, val); err != nil {
			return vm.runtimeErr("%s", err)
		}
		return nil
	case TagLayer:
		if err := recv.Data.(*LayerView).Set(name, val); err != nil {
			return vm.runtimeErr("%s", err)
		}
		return nil
	case TagFile:
		f := recv.Data.(*File)
		if f.IsPcap && f.Pcap != nil {
			ok, err := setPcapHeaderProperty(&f.Pcap.Header, name, val)
			if err != nil {
				return vm.runtimeErr("%s", err)
			}
			if ok {
				return nil
			}
		}
		return vm.runtimeErr("file has no property %q", name)
	default:
		return vm.runtimeErr("value of type %s does not support property assignment", recv.Tag)
	}
}
