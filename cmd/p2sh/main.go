// Command p2sh is the interpreter's entry point (§6 External interfaces):
// run a script file, evaluate a one-line -c expression, drive a pcap
// filter program, or fall into an interactive REPL.
//
// Grounded on the teacher's cmd/msg/main.go flag layout and peterh/liner
// REPL loop, adapted from the MindScript interpreter's run/REPL dispatch to
// p2sh's compile-once-run dispatch (script vs filter vs REPL).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/p2sh/p2sh"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		exprFlag   = flag.String("c", "", "evaluate EXPR as a one-line program instead of a file")
		inputFlag  = flag.String("i", "", "pcap file to read as $0 for filter programs (required: stdin is not read as a pcap stream)")
		outputFlag = flag.String("o", "", "pcap file to write matched packets to (default: stdout)")
		suppress   = flag.Bool("s", false, "suppress the default emit-on-match action")
	)
	flag.Parse()

	stdinFile := wrapStd(os.Stdin, p2sh.ModeRead)
	stdoutFile := wrapStd(os.Stdout, p2sh.ModeWrite)
	stderrFile := wrapStd(os.Stderr, p2sh.ModeWrite)

	builtins := p2sh.NewStandardRegistry()

	if *exprFlag != "" {
		return runSource(*exprFlag, "<-c>", builtins, *inputFlag, *outputFlag, *suppress, stdinFile, stdoutFile, stderrFile)
	}

	args := flag.Args()
	if len(args) == 0 {
		return repl(builtins, stdinFile, stdoutFile, stderrFile)
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	src := stripShebang(string(data))
	return runSource(src, path, builtins, *inputFlag, *outputFlag, *suppress, stdinFile, stdoutFile, stderrFile)
}

func stripShebang(src string) string {
	if strings.HasPrefix(src, "#!") {
		if i := strings.IndexByte(src, '\n'); i >= 0 {
			return src[i+1:]
		}
		return ""
	}
	return src
}

func runSource(src, name string, builtins *p2sh.BuiltinRegistry, inPath, outPath string, suppress bool, stdin, stdout, stderr *p2sh.File) int {
	prog, err := p2sh.ParseProgram(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, p2sh.WrapErrorWithName(err, name, src))
		return 1
	}
	compiled, err := p2sh.Compile(prog, builtins)
	if err != nil {
		fmt.Fprintln(os.Stderr, p2sh.WrapErrorWithName(err, name, src))
		return 1
	}

	if len(compiled.Filters) > 0 {
		opts := p2sh.RunOptions{InputPath: inPath, OutputPath: outPath, SuppressDefaultEmit: suppress}
		if err := p2sh.RunFilterProgram(compiled, builtins, opts, stdin, stdout, stderr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	vm := p2sh.NewVM(compiled, builtins, stdin, stdout, stderr)
	if _, err := vm.Run(); err != nil {
		fmt.Fprintln(os.Stderr, p2sh.WrapErrorWithName(err, name, src))
		return 1
	}
	return 0
}

// repl implements the interactive mode: each line is parsed, compiled, and
// run in its own ephemeral program, sharing nothing with the line before
// it — p2sh has no incremental-compile support, matching the teacher's own
// "one-shot evaluate, don't persist interpreter state across lines" REPL
// shape for anything beyond its environment.
func repl(builtins *p2sh.BuiltinRegistry, stdin, stdout, stderr *p2sh.File) int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("p2sh — interactive mode (Ctrl-D to exit)")
	for {
		text, err := line.Prompt("p2sh> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return 0
			}
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		line.AppendHistory(text)

		prog, err := p2sh.ParseProgram(text)
		if err != nil {
			fmt.Fprintln(os.Stderr, p2sh.WrapErrorWithSource(err, text))
			continue
		}
		compiled, err := p2sh.Compile(prog, builtins)
		if err != nil {
			fmt.Fprintln(os.Stderr, p2sh.WrapErrorWithSource(err, text))
			continue
		}
		vm := p2sh.NewVM(compiled, builtins, stdin, stdout, stderr)
		v, err := vm.Run()
		if err != nil {
			fmt.Fprintln(os.Stderr, p2sh.WrapErrorWithSource(err, text))
			continue
		}
		fmt.Println(p2sh.Display(v))
	}
}

// stdFile adapts an *os.File to p2sh's File shape without exporting a
// gratuitous second constructor from the core package for what is, from
// the script's point of view, just another readable/writable handle.
type stdFile struct {
	*os.File
}

func (stdFile) Sync() error { return nil }

func wrapStd(f *os.File, mode p2sh.FileMode) *p2sh.File {
	sf := stdFile{f}
	switch mode {
	case p2sh.ModeRead:
		return &p2sh.File{Name: f.Name(), Mode: mode, Reader: sf, Closer: noopCloser{}}
	default:
		return &p2sh.File{Name: f.Name(), Mode: mode, Writer: sf, Closer: noopCloser{}}
	}
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
