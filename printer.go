// printer.go — value display/formatting (§5 "Display", §6 "Format
// specifiers").
//
// Grounded on the teacher's printer.go: a single recursive stringify
// function with a visited-set guard against cyclic arrays/maps, switching
// on the value's tag rather than on a Stringer interface (values here carry
// no methods of their own).
package p2sh

import (
	"fmt"
	"strconv"
	"strings"
)

// Display renders v the way the REPL and `print`/`str` do (§5).
func Display(v Value) string {
	var b strings.Builder
	writeValue(&b, v, map[interface{}]bool{})
	return b.String()
}

func writeValue(b *strings.Builder, v Value, seen map[interface{}]bool) {
	switch v.Tag {
	case TagNull:
		b.WriteString("null")
	case TagBool:
		b.WriteString(strconv.FormatBool(v.Data.(bool)))
	case TagInt:
		b.WriteString(strconv.FormatInt(v.Data.(int64), 10))
	case TagFloat:
		b.WriteString(formatFloat(v.Data.(float64)))
	case TagChar:
		b.WriteString("'")
		b.WriteString(string(v.Data.(rune)))
		b.WriteString("'")
	case TagByte:
		fmt.Fprintf(b, "0x%02x", v.Data.(byte))
	case TagString:
		b.WriteString(v.Data.(string))
	case TagArray:
		writeArray(b, v.Data.(*Array), seen)
	case TagMap:
		writeMap(b, v.Data.(*MapObject), seen)
	case TagClosure:
		cl := v.Data.(*Closure)
		fmt.Fprintf(b, "<fn %s>", cl.Chunk.Name)
	case TagBuiltin:
		fmt.Fprintf(b, "<builtin %s>", v.Data.(*Builtin).Name)
	case TagFile:
		fmt.Fprintf(b, "<file %s>", v.Data.(*File).Name)
	case TagPacket:
		b.WriteString("<packet>")
	case TagLayer:
		fmt.Fprintf(b, "<%s>", v.Data.(*LayerView).Kind)
	case TagError:
		e := v.Data.(*ErrorObject)
		fmt.Fprintf(b, "<error %d: %s>", e.Errno, e.Message)
	default:
		b.WriteString("<unknown>")
	}
}

// formatFloat follows the teacher's printer.go convention of always
// showing a decimal point, so floats never visually collide with ints
// (1 vs 1.0).
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func writeArray(b *strings.Builder, a *Array, seen map[interface{}]bool) {
	if seen[a] {
		b.WriteString("[...]")
		return
	}
	seen[a] = true
	defer delete(seen, a)
	b.WriteString("[")
	for i, e := range a.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.Tag == TagString {
			fmt.Fprintf(b, "%q", e.Data.(string))
		} else {
			writeValue(b, e, seen)
		}
	}
	b.WriteString("]")
}

func writeMap(b *strings.Builder, m *MapObject, seen map[interface{}]bool) {
	if seen[m] {
		b.WriteString("{...}")
		return
	}
	seen[m] = true
	defer delete(seen, m)
	b.WriteString("{")
	for i, k := range m.Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		kv := KeyToValue(k)
		if kv.Tag == TagString {
			b.WriteString(kv.Data.(string))
		} else {
			writeValue(b, kv, seen)
		}
		b.WriteString(": ")
		val := m.Entries[k]
		if val.Tag == TagString {
			fmt.Fprintf(b, "%q", val.Data.(string))
		} else {
			writeValue(b, val, seen)
		}
	}
	b.WriteString("}")
}

// formatPrintArgs implements the shared argument rule for
// print/println/eprint/eprintln/puts (§6): when the first argument is a
// string containing a `{` placeholder, it's a format template consumed
// against the remaining arguments via FormatArgs; otherwise every argument
// is space-joined via Display. This lets `puts(1 + 2 * 3)` (§8 scenario 1)
// print a bare value while `puts("{} + {} = {}", a, b, a + b)` still
// interpolates.
func formatPrintArgs(args []Value) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if args[0].Tag == TagString {
		if spec := args[0].Data.(string); strings.Contains(spec, "{") {
			return FormatArgs(spec, args[1:])
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Display(a)
	}
	return strings.Join(parts, " "), nil
}

// FormatArgs implements §6's placeholder grammar: `{}` consumes the next
// argument and renders it via Display; `{:X}`/`{:x}`/`{:b}`/`{:o}` render
// an int as upper/lower hex, binary, or octal; `{:.N}` fixes a float to N
// fraction digits. Each placeholder consumes one argument, in order.
// Unrecognized specifiers are a runtime error, per §6.
func FormatArgs(spec string, args []Value) (string, error) {
	var b strings.Builder
	argIdx := 0
	i := 0
	for i < len(spec) {
		c := spec[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(spec[i:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated { in format string %q", spec)
		}
		placeholder := spec[i+1 : i+end]
		i += end + 1
		if argIdx >= len(args) {
			return "", fmt.Errorf("format: not enough arguments for placeholder %d", argIdx+1)
		}
		out, err := formatPlaceholder(placeholder, args[argIdx])
		if err != nil {
			return "", err
		}
		argIdx++
		b.WriteString(out)
	}
	return b.String(), nil
}

func formatPlaceholder(spec string, v Value) (string, error) {
	if spec == "" {
		return Display(v), nil
	}
	if spec[0] != ':' {
		return "", fmt.Errorf("unrecognized format specifier {%s}", spec)
	}
	verb := spec[1:]
	switch {
	case verb == "X":
		i, ok := asInt(v)
		if !ok {
			return "", fmt.Errorf("{:X} requires an int, got %s", v.Tag)
		}
		return fmt.Sprintf("%X", i), nil
	case verb == "x":
		i, ok := asInt(v)
		if !ok {
			return "", fmt.Errorf("{:x} requires an int, got %s", v.Tag)
		}
		return fmt.Sprintf("%x", i), nil
	case verb == "b":
		i, ok := asInt(v)
		if !ok {
			return "", fmt.Errorf("{:b} requires an int, got %s", v.Tag)
		}
		return fmt.Sprintf("%b", i), nil
	case verb == "o":
		i, ok := asInt(v)
		if !ok {
			return "", fmt.Errorf("{:o} requires an int, got %s", v.Tag)
		}
		return fmt.Sprintf("%o", i), nil
	case len(verb) > 1 && verb[0] == '.':
		n, err := strconv.Atoi(verb[1:])
		if err != nil {
			return "", fmt.Errorf("unrecognized format specifier {%s}", spec)
		}
		f, ok := asFloat(v)
		if !ok {
			return "", fmt.Errorf("{:.%d} requires a number, got %s", n, v.Tag)
		}
		return strconv.FormatFloat(f, 'f', n, 64), nil
	default:
		return "", fmt.Errorf("unrecognized format specifier {%s}", spec)
	}
}
