// compiler.go — single-pass AST → bytecode compiler (§4.D).
package p2sh

import "fmt"

// loopFrame tracks one enclosing loop: its optional label, the offset a
// `continue` jumps back to, the operand sites of pending `break` jumps, and
// the scope depth at loop entry.
type loopFrame struct {
	label          string
	continueTarget int
	breakPatches   []int
	scopeDepth     int
}

// funcCompiler compiles one function body (including the top-level
// program, which is treated as a parameterless function) into a Chunk.
type funcCompiler struct {
	chunk   *Chunk
	syms    *SymbolTable
	outer   *funcCompiler
	loops   []*loopFrame
	builtin *BuiltinRegistry

	// filterUnits accumulates every `@ pat { body }` statement seen while
	// compiling the top-level program, for the filter driver (§4.J). Only
	// meaningful on the root funcCompiler.
	filterUnits []*FilterUnit
}

// FilterUnit is one compiled filter statement: pattern + body are each
// compiled into their own zero-arg chunk sharing the program's globals,
// executed per packet by the filter driver (filter.go).
type FilterUnit struct {
	IsEnd   bool
	Pattern *Chunk // nil => always matches
	Body    *Chunk // nil => implicit emit-current-packet
}

// Program compilation result: the top-level chunk plus the filter units
// registered while compiling it, in source order (§2 "control flow").
type CompiledProgram struct {
	Top         *Chunk
	Filters     []*FilterUnit
	ImplicitVar map[string]int // name -> global slot, for the filter driver (§4.J)
	AmbientVar  map[string]int // name -> global slot, for stdin/stdout/stderr
	NumGlobals  int
}

// ambientGlobals are keywords the parser turns into plain Idents (§6); the
// VM binds their global slots to the process's actual streams before
// running the program, the same mechanism implicitGlobals uses for the
// filter driver's per-packet variables.
var ambientGlobals = []string{"stdin", "stdout", "stderr"}

// implicitGlobals are the filter driver's privileged per-packet variables
// (§4.J): pre-declared as globals so both the prelude and every filter
// unit can read them, and so the driver can write them by global index
// before invoking each unit.
var implicitGlobals = []string{
	"NP", "PL", "WL", "TSS", "TSU", "$0", "$1", "$2", "$3",
}

// Compile compiles a parsed program into bytecode (§4.D).
func Compile(prog *Program, builtins *BuiltinRegistry) (*CompiledProgram, error) {
	resetGlobalIndex()
	fc := &funcCompiler{
		chunk:   NewChunk("<toplevel>"),
		syms:    NewSymbolTable(nil),
		builtin: builtins,
	}
	implicitVar := map[string]int{}
	for _, name := range implicitGlobals {
		sym := fc.syms.Define(name)
		implicitVar[name] = sym.Index
	}
	ambientVar := map[string]int{}
	for _, name := range ambientGlobals {
		sym := fc.syms.Define(name)
		ambientVar[name] = sym.Index
	}
	if err := fc.compileBlockStmts(prog.Stmts, nil); err != nil {
		return nil, err
	}
	fc.chunk.emitOp(OpNull, 0)
	fc.chunk.emitOp(OpReturn, 0)
	fc.chunk.NumLocals = fc.syms.NumLocals()
	return &CompiledProgram{
		Top: fc.chunk, Filters: fc.filterUnits,
		ImplicitVar: implicitVar, AmbientVar: ambientVar,
		NumGlobals: globalIndexCounter,
	}, nil
}

func (fc *funcCompiler) sub(name string) *funcCompiler {
	return &funcCompiler{
		chunk:   NewChunk(name),
		syms:    NewSymbolTable(fc.syms),
		outer:   fc,
		builtin: fc.builtin,
	}
}

// root walks outward to the funcCompiler compiling the top-level program,
// so nested functions' filter statements (illegal, but tolerated) and
// diagnostics still land in one place.
func (fc *funcCompiler) root() *funcCompiler {
	for fc.outer != nil {
		fc = fc.outer
	}
	return fc
}

func compileErr(line, col int, format string, args ...interface{}) error {
	return &CompileError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

// compileBlockStmts compiles a statement sequence plus optional tail
// expression, leaving exactly one value on the stack (the tail's value,
// or Null if there was none) — the uniform "block yields a value" rule.
func (fc *funcCompiler) compileBlockStmts(stmts []Stmt, tail Expr) error {
	for _, st := range stmts {
		if err := fc.compileStmt(st); err != nil {
			return err
		}
	}
	if tail != nil {
		return fc.compileExpr(tail)
	}
	fc.chunk.emitOp(OpNull, 0)
	return nil
}

func (fc *funcCompiler) compileBlockAsValue(b *BlockExpr) error {
	fc.syms.PushScope()
	err := fc.compileBlockStmts(b.Stmts, b.Tail)
	fc.closeScope()
	return err
}

// closeScope pops the function's innermost scope, emitting
// OpCloseUpvalue <slot> for each of its locals. Nothing is popped: locals
// live in frame slots reserved up front (Chunk.NumLocals), not on the
// operand stack, so the block's value stays on top.
func (fc *funcCompiler) closeScope() {
	popped := fc.syms.PopScope()
	for _, sym := range popped {
		// Conservative: always emit CloseUpvalue so any local that might
		// have been captured is hoisted; the VM treats CloseUpvalue as a
		// no-op when no open upvalue points at or above that slot.
		fc.chunk.emitOp(OpCloseUpvalue, 0)
		fc.chunk.emitU16(sym.Index, 0)
	}
}

func (fc *funcCompiler) compileStmt(st Stmt) error {
	switch s := st.(type) {
	case *LetStmt:
		sym := fc.syms.Define(s.Name)
		if err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		fc.emitStore(sym, s.Line, s.Col)
		fc.chunk.emitOp(OpPop, s.Line)
		return nil
	case *ExprStmt:
		if err := fc.compileExpr(s.X); err != nil {
			return err
		}
		if s.Discard {
			fc.chunk.emitOp(OpPop, s.Line)
		}
		return nil
	case *ReturnStmt:
		if s.Value != nil {
			if err := fc.compileExpr(s.Value); err != nil {
				return err
			}
		} else {
			fc.chunk.emitOp(OpNull, s.Line)
		}
		fc.chunk.emitOp(OpReturn, s.Line)
		return nil
	case *BreakStmt:
		lf := fc.findLoop(s.Label)
		if lf == nil {
			return compileErr(s.Line, s.Col, "break outside of a loop (or unknown label %q)", s.Label)
		}
		fc.chunk.emitOp(OpNull, s.Line) // loop value on break
		pos := fc.chunk.emitOp(OpJump, s.Line)
		operandPos := fc.chunk.emitU16(0, s.Line)
		_ = pos
		lf.breakPatches = append(lf.breakPatches, operandPos)
		return nil
	case *ContinueStmt:
		lf := fc.findLoop(s.Label)
		if lf == nil {
			return compileErr(s.Line, s.Col, "continue outside of a loop (or unknown label %q)", s.Label)
		}
		fc.chunk.emitOp(OpJump, s.Line)
		patchU16Later := fc.chunk.emitU16(0, s.Line)
		patchU16(fc.chunk.Code, patchU16Later, lf.continueTarget)
		return nil
	case *FilterStmt:
		return fc.compileFilterStmt(s)
	default:
		return compileErr(0, 0, "unhandled statement type %T", st)
	}
}

func (fc *funcCompiler) findLoop(label string) *loopFrame {
	for i := len(fc.loops) - 1; i >= 0; i-- {
		if label == "" || fc.loops[i].label == label {
			return fc.loops[i]
		}
	}
	return nil
}

func (fc *funcCompiler) emitStore(sym Symbol, line, col int) {
	switch sym.Scope {
	case ScopeGlobal:
		fc.chunk.emitOp(OpSetGlobal, line)
		fc.chunk.emitU16(sym.Index, line)
	case ScopeLocal:
		fc.chunk.emitOp(OpSetLocal, line)
		fc.chunk.emitU16(sym.Index, line)
	case ScopeFree:
		fc.chunk.emitOp(OpSetUpvalue, line)
		fc.chunk.emitU16(sym.Index, line)
	default:
		// builtins are never assignable; the parser only ever produces an
		// lvalue symbol here via Ident, and the compiler resolves idents
		// to builtin scope only on read, never via Define.
	}
}

func (fc *funcCompiler) emitLoad(sym Symbol, line, col int) {
	switch sym.Scope {
	case ScopeGlobal:
		fc.chunk.emitOp(OpGetGlobal, line)
		fc.chunk.emitU16(sym.Index, line)
	case ScopeLocal:
		fc.chunk.emitOp(OpGetLocal, line)
		fc.chunk.emitU16(sym.Index, line)
	case ScopeFree:
		fc.chunk.emitOp(OpGetUpvalue, line)
		fc.chunk.emitU16(sym.Index, line)
	case ScopeBuiltin:
		fc.chunk.emitOp(OpGetBuiltin, line)
		fc.chunk.emitU16(sym.Index, line)
	}
}

func (fc *funcCompiler) compileExpr(e Expr) error {
	switch n := e.(type) {
	case *NullLit:
		fc.chunk.emitOp(OpNull, n.Line)
	case *BoolLit:
		if n.Value {
			fc.chunk.emitOp(OpTrue, n.Line)
		} else {
			fc.chunk.emitOp(OpFalse, n.Line)
		}
	case *IntLit:
		fc.emitConst(Int(n.Value), n.Line)
	case *FloatLit:
		fc.emitConst(Float(n.Value), n.Line)
	case *CharLit:
		fc.emitConst(Char(n.Value), n.Line)
	case *ByteLit:
		fc.emitConst(Byte(n.Value), n.Line)
	case *StringLit:
		fc.emitConst(Str(n.Value), n.Line)
	case *Ident:
		sym, ok := fc.syms.Resolve(n.Name, fc.builtin)
		if !ok {
			return compileErr(n.Line, n.Col, "undefined identifier %q", n.Name)
		}
		fc.emitLoad(sym, n.Line, n.Col)
	case *ArrayLit:
		for _, el := range n.Elems {
			if err := fc.compileExpr(el); err != nil {
				return err
			}
		}
		fc.chunk.emitOp(OpArray, n.Line)
		fc.chunk.emitU16(len(n.Elems), n.Line)
	case *MapLit:
		for _, ent := range n.Entries {
			if err := fc.compileExpr(ent.Key); err != nil {
				return err
			}
			if err := fc.compileExpr(ent.Value); err != nil {
				return err
			}
		}
		fc.chunk.emitOp(OpMap, n.Line)
		fc.chunk.emitU16(len(n.Entries), n.Line)
	case *Unary:
		if err := fc.compileExpr(n.Operand); err != nil {
			return err
		}
		switch n.Op {
		case MINUS:
			fc.chunk.emitOp(OpNeg, n.Line)
		case BANG:
			fc.chunk.emitOp(OpNot, n.Line)
		case TILDE:
			fc.chunk.emitOp(OpBitNot, n.Line)
		}
	case *Binary:
		return fc.compileBinary(n)
	case *Logical:
		return fc.compileLogical(n)
	case *Assign:
		return fc.compileAssign(n)
	case *Call:
		if err := fc.compileExpr(n.Callee); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := fc.compileExpr(a); err != nil {
				return err
			}
		}
		fc.chunk.emitOp(OpCall, n.Line)
		fc.chunk.emitU16(len(n.Args), n.Line)
	case *Index:
		if err := fc.compileExpr(n.Recv); err != nil {
			return err
		}
		if err := fc.compileExpr(n.Idx); err != nil {
			return err
		}
		fc.chunk.emitOp(OpGetIndex, n.Line)
	case *Property:
		if err := fc.compileExpr(n.Recv); err != nil {
			return err
		}
		idx := fc.chunk.AddConstant(Str(n.Name))
		fc.chunk.emitOp(OpGetProperty, n.Line)
		fc.chunk.emitU16(idx, n.Line)
	case *FnLit:
		return fc.compileFnLit(n)
	case *IfExpr:
		return fc.compileIf(n)
	case *MatchExpr:
		return fc.compileMatch(n)
	case *LoopExpr:
		return fc.compileLoop(n)
	case *WhileExpr:
		return fc.compileWhile(n)
	case *BlockExpr:
		return fc.compileBlockAsValue(n)
	case *Range:
		if err := fc.compileExpr(n.From); err != nil {
			return err
		}
		if err := fc.compileExpr(n.To); err != nil {
			return err
		}
		if n.Inclusive {
			fc.chunk.emitOp(OpRangeInclusive, n.Line)
		} else {
			fc.chunk.emitOp(OpRange, n.Line)
		}
	default:
		return compileErr(0, 0, "unhandled expression type %T", e)
	}
	return nil
}

func (fc *funcCompiler) emitConst(v Value, line int) {
	idx := fc.chunk.AddConstant(v)
	fc.chunk.emitOp(OpConstant, line)
	fc.chunk.emitU16(idx, line)
}

func (fc *funcCompiler) compileBinary(n *Binary) error {
	if err := fc.compileExpr(n.Left); err != nil {
		return err
	}
	if err := fc.compileExpr(n.Right); err != nil {
		return err
	}
	switch n.Op {
	case PLUS:
		fc.chunk.emitOp(OpAdd, n.Line)
	case MINUS:
		fc.chunk.emitOp(OpSub, n.Line)
	case STAR:
		fc.chunk.emitOp(OpMul, n.Line)
	case SLASH:
		fc.chunk.emitOp(OpDiv, n.Line)
	case PERCENT:
		fc.chunk.emitOp(OpMod, n.Line)
	case SHL:
		fc.chunk.emitOp(OpShl, n.Line)
	case SHR:
		fc.chunk.emitOp(OpShr, n.Line)
	case AMP:
		fc.chunk.emitOp(OpBitAnd, n.Line)
	case CARET:
		fc.chunk.emitOp(OpBitXor, n.Line)
	case PIPE:
		fc.chunk.emitOp(OpBitOr, n.Line)
	case EQ:
		fc.chunk.emitOp(OpEq, n.Line)
	case NEQ:
		fc.chunk.emitOp(OpNe, n.Line)
	case LT:
		fc.chunk.emitOp(OpLt, n.Line)
	case LE:
		fc.chunk.emitOp(OpLe, n.Line)
	case GT:
		fc.chunk.emitOp(OpGt, n.Line)
	case GE:
		fc.chunk.emitOp(OpGe, n.Line)
	default:
		return compileErr(n.Line, n.Col, "unsupported binary operator")
	}
	return nil
}

// compileLogical implements short-circuit && / || (§4.D): the decisive
// operand is left on the stack, uncoerced to boolean.
func (fc *funcCompiler) compileLogical(n *Logical) error {
	if err := fc.compileExpr(n.Left); err != nil {
		return err
	}
	if n.Op == AND_AND {
		fc.chunk.emitOp(OpJumpIfFalseNoPop, n.Line)
		patch := fc.chunk.emitU16(0, n.Line)
		fc.chunk.emitOp(OpPop, n.Line)
		if err := fc.compileExpr(n.Right); err != nil {
			return err
		}
		patchU16(fc.chunk.Code, patch, len(fc.chunk.Code))
		return nil
	}
	// OR_OR
	fc.chunk.emitOp(OpJumpIfTrueNoPop, n.Line)
	patch := fc.chunk.emitU16(0, n.Line)
	fc.chunk.emitOp(OpPop, n.Line)
	if err := fc.compileExpr(n.Right); err != nil {
		return err
	}
	patchU16(fc.chunk.Code, patch, len(fc.chunk.Code))
	return nil
}

func (fc *funcCompiler) compileAssign(n *Assign) error {
	switch t := n.Target.(type) {
	case *Ident:
		sym, ok := fc.syms.Resolve(t.Name, fc.builtin)
		if !ok {
			return compileErr(t.Line, t.Col, "undefined identifier %q", t.Name)
		}
		if err := fc.compileExpr(n.Value); err != nil {
			return err
		}
		fc.emitStore(sym, n.Line, n.Col)
		return nil
	case *Index:
		if err := fc.compileExpr(t.Recv); err != nil {
			return err
		}
		if err := fc.compileExpr(t.Idx); err != nil {
			return err
		}
		if err := fc.compileExpr(n.Value); err != nil {
			return err
		}
		fc.chunk.emitOp(OpSetIndex, n.Line)
		return nil
	case *Property:
		if err := fc.compileExpr(t.Recv); err != nil {
			return err
		}
		if err := fc.compileExpr(n.Value); err != nil {
			return err
		}
		idx := fc.chunk.AddConstant(Str(t.Name))
		fc.chunk.emitOp(OpSetProperty, n.Line)
		fc.chunk.emitU16(idx, n.Line)
		return nil
	default:
		return compileErr(n.Line, n.Col, "invalid assignment target")
	}
}

// compileFnLit compiles a function literal: a new SymbolTable/Chunk
// context is pushed; on completion the outer compiler emits
// OpClosure <const_idx> <n_upvalues> [desc...] (§4.D "Closures").
func (fc *funcCompiler) compileFnLit(n *FnLit) error {
	name := n.Name
	if name == "" {
		name = "<anonymous>"
	}
	sub := fc.sub(name)
	// Recursion: the function's own name is visible inside its body,
	// bound in the *enclosing* scope before the body compiles (§4.C).
	var selfSym Symbol
	hasSelf := n.Name != ""
	if hasSelf {
		selfSym = fc.syms.Define(n.Name)
	}
	for _, param := range n.Params {
		sub.syms.Define(param)
	}
	if err := sub.compileBlockStmts(n.Body.Stmts, n.Body.Tail); err != nil {
		return err
	}
	sub.chunk.emitOp(OpReturn, n.Line)
	sub.chunk.Arity = len(n.Params)
	sub.chunk.NumLocals = sub.syms.NumLocals()
	sub.chunk.Upvalues = sub.syms.Upvalues()

	constIdx := fc.chunk.AddFunction(sub.chunk)
	fc.chunk.emitOp(OpClosure, n.Line)
	fc.chunk.emitU16(constIdx, n.Line)
	fc.chunk.emitU16(len(sub.chunk.Upvalues), n.Line)
	for _, uv := range sub.chunk.Upvalues {
		if uv.IsLocal {
			fc.chunk.Code = append(fc.chunk.Code, 1)
		} else {
			fc.chunk.Code = append(fc.chunk.Code, 0)
		}
		fc.chunk.emitU16(uv.Index, n.Line)
	}
	if hasSelf {
		fc.chunk.emitOp(OpDup, n.Line)
		fc.emitStore(selfSym, n.Line, n.Col)
		fc.chunk.emitOp(OpPop, n.Line)
	}
	return nil
}

// compileIf implements §4.D "If".
func (fc *funcCompiler) compileIf(n *IfExpr) error {
	if err := fc.compileExpr(n.Cond); err != nil {
		return err
	}
	fc.chunk.emitOp(OpJumpIfFalse, n.Line)
	elsePatch := fc.chunk.emitU16(0, n.Line)
	if err := fc.compileBlockAsValue(n.Then); err != nil {
		return err
	}
	fc.chunk.emitOp(OpJump, n.Line)
	endPatch := fc.chunk.emitU16(0, n.Line)
	patchU16(fc.chunk.Code, elsePatch, len(fc.chunk.Code))
	switch e := n.Else.(type) {
	case nil:
		fc.chunk.emitOp(OpNull, n.Line)
	case *BlockExpr:
		if err := fc.compileBlockAsValue(e); err != nil {
			return err
		}
	case *IfExpr:
		if err := fc.compileIf(e); err != nil {
			return err
		}
	default:
		fc.chunk.emitOp(OpNull, n.Line)
	}
	patchU16(fc.chunk.Code, endPatch, len(fc.chunk.Code))
	return nil
}

// compileMatch implements §4.D "Match": the subject is compiled once into
// a temporary local; each arm's patterns compile to an equality/range
// predicate with `_` unconditional; the taken arm's value is the match's
// value; non-exhaustive match falls through to null.
func (fc *funcCompiler) compileMatch(n *MatchExpr) error {
	if err := fc.compileExpr(n.Subject); err != nil {
		return err
	}
	fc.syms.PushScope()
	subjectSym := fc.syms.Define("<match-subject>")
	fc.emitStore(subjectSym, n.Line, n.Col)
	fc.chunk.emitOp(OpPop, n.Line)

	var endPatches []int
	for _, arm := range n.Arms {
		wildcard := false
		for _, pat := range arm.Patterns {
			if pat.Wildcard {
				wildcard = true
				break
			}
		}
		var bodyPatch int
		if !wildcard {
			var orPatches []int
			for i, pat := range arm.Patterns {
				fc.emitLoad(subjectSym, n.Line, n.Col)
				if err := fc.compilePatternTest(pat); err != nil {
					return err
				}
				if i < len(arm.Patterns)-1 {
					fc.chunk.emitOp(OpJumpIfTrueNoPop, n.Line)
					orPatches = append(orPatches, fc.chunk.emitU16(0, n.Line))
					fc.chunk.emitOp(OpPop, n.Line)
				}
			}
			for _, p := range orPatches {
				patchU16(fc.chunk.Code, p, len(fc.chunk.Code))
			}
			fc.chunk.emitOp(OpJumpIfFalse, n.Line)
			bodyPatch = fc.chunk.emitU16(0, n.Line)
		}
		if err := fc.compileBlockAsValue(arm.Body); err != nil {
			return err
		}
		fc.chunk.emitOp(OpJump, n.Line)
		endPatches = append(endPatches, fc.chunk.emitU16(0, n.Line))
		if !wildcard {
			patchU16(fc.chunk.Code, bodyPatch, len(fc.chunk.Code))
		}
		if wildcard {
			break
		}
	}
	fc.chunk.emitOp(OpNull, n.Line)
	for _, p := range endPatches {
		patchU16(fc.chunk.Code, p, len(fc.chunk.Code))
	}
	fc.closeScope()
	return nil
}

// compilePatternTest compiles, with the subject value already pushed, a
// single pattern test that leaves a bool on the stack.
func (fc *funcCompiler) compilePatternTest(pat Pattern) error {
	if pat.Range != nil {
		fc.chunk.emitOp(OpDup, 0)
		if err := fc.compileExpr(pat.Range.From); err != nil {
			return err
		}
		fc.chunk.emitOp(OpGe, 0)
		fc.chunk.emitOp(OpJumpIfFalse, 0)
		failPatch := fc.chunk.emitU16(0, 0)
		if err := fc.compileExpr(pat.Range.To); err != nil {
			return err
		}
		if pat.Range.Inclusive {
			fc.chunk.emitOp(OpLe, 0)
		} else {
			fc.chunk.emitOp(OpLt, 0)
		}
		fc.chunk.emitOp(OpJump, 0)
		endPatch := fc.chunk.emitU16(0, 0)
		// Below the lower bound: drop the subject, leave false.
		patchU16(fc.chunk.Code, failPatch, len(fc.chunk.Code))
		fc.chunk.emitOp(OpPop, 0)
		fc.chunk.emitOp(OpFalse, 0)
		patchU16(fc.chunk.Code, endPatch, len(fc.chunk.Code))
		return nil
	}
	if err := fc.compileExpr(pat.Lit); err != nil {
		return err
	}
	fc.chunk.emitOp(OpEq, 0)
	return nil
}

func (fc *funcCompiler) compileLoop(n *LoopExpr) error {
	start := len(fc.chunk.Code)
	lf := &loopFrame{label: n.Label, continueTarget: start, scopeDepth: len(fc.syms.scopes)}
	fc.loops = append(fc.loops, lf)
	if err := fc.compileBlockAsValue(n.Body); err != nil {
		return err
	}
	fc.chunk.emitOp(OpPop, n.Line)
	fc.chunk.emitOp(OpJump, n.Line)
	backPatch := fc.chunk.emitU16(0, n.Line)
	patchU16(fc.chunk.Code, backPatch, start)
	for _, p := range lf.breakPatches {
		patchU16(fc.chunk.Code, p, len(fc.chunk.Code))
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	// The loop expression's own value is whatever a `break` pushed (null
	// if the loop's body never breaks with a value — bare `break` always
	// pushes null per §4.D).
	return nil
}

func (fc *funcCompiler) compileWhile(n *WhileExpr) error {
	start := len(fc.chunk.Code)
	lf := &loopFrame{label: n.Label, continueTarget: start, scopeDepth: len(fc.syms.scopes)}
	fc.loops = append(fc.loops, lf)
	if err := fc.compileExpr(n.Cond); err != nil {
		return err
	}
	fc.chunk.emitOp(OpJumpIfFalse, n.Line)
	exitPatch := fc.chunk.emitU16(0, n.Line)
	if err := fc.compileBlockAsValue(n.Body); err != nil {
		return err
	}
	fc.chunk.emitOp(OpPop, n.Line)
	fc.chunk.emitOp(OpJump, n.Line)
	backPatch := fc.chunk.emitU16(0, n.Line)
	patchU16(fc.chunk.Code, backPatch, start)
	patchU16(fc.chunk.Code, exitPatch, len(fc.chunk.Code))
	fc.chunk.emitOp(OpNull, n.Line)
	for _, p := range lf.breakPatches {
		patchU16(fc.chunk.Code, p, len(fc.chunk.Code))
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	return nil
}

// compileFilterStmt implements §4.D "Filter statements": each `@ pat
// {body}` compiles into a FilterUnit holding two zero-arg chunks, the
// pattern and the body (an emit of the current packet when the body is
// absent); the driver runs the body only when the pattern is truthy.
// Units are registered with the driver in source order.
func (fc *funcCompiler) compileFilterStmt(s *FilterStmt) error {
	root := fc.root()
	unit := &FilterUnit{IsEnd: s.IsEnd}

	if s.Pattern != nil {
		pc := fc.sub("<filter-pattern>")
		if err := pc.compileExpr(s.Pattern); err != nil {
			return err
		}
		pc.chunk.emitOp(OpReturn, s.Line)
		pc.chunk.NumLocals = pc.syms.NumLocals()
		pc.chunk.Upvalues = pc.syms.Upvalues()
		unit.Pattern = pc.chunk
	}

	bc := fc.sub("<filter-body>")
	if s.Body != nil {
		if err := bc.compileBlockStmts(s.Body.Stmts, s.Body.Tail); err != nil {
			return err
		}
	} else {
		bc.chunk.emitOp(OpEmit, s.Line)
		bc.chunk.emitOp(OpNull, s.Line)
	}
	bc.chunk.emitOp(OpReturn, s.Line)
	bc.chunk.NumLocals = bc.syms.NumLocals()
	bc.chunk.Upvalues = bc.syms.Upvalues()
	unit.Body = bc.chunk

	root.filterUnits = append(root.filterUnits, unit)
	return nil
}
