// filter.go — the AWK-like packet filter driver (§4.J).
//
// Grounded on the spec's "compile once, run per packet" protocol: a
// prelude (everything outside `@` statements) runs once up front, then
// every packet is decoded, the implicit variables are written into their
// pre-assigned global slots, and each filter unit's pattern/body pair
// fires in source order. `@ end` units run once after the stream is
// exhausted. The teacher has no analogue for this driver (it is a
// MindScript interpreter, not a packet-capture tool); the shape — setup, per-record loop,
// teardown — follows the general driver/runner convention visible across
// the example corpus's cmd/ entry points.
package p2sh

import (
	"fmt"
)

// RunOptions configures one filter-driver invocation (§6 CLI surface).
type RunOptions struct {
	InputPath  string // "-" or empty means the stdin File, which must carry a Pcap stream
	OutputPath string // "" means the default pcap output stream goes to stdout
	SuppressDefaultEmit bool // -s: no default output stream, so bodiless patterns emit nothing
}

// RunFilterProgram drives the already compiled prog against the pcap
// stream named by opts.InputPath, writing emitted packets to
// opts.OutputPath, or to stdout when it is empty (§4.J protocol). Reading
// from stdin works only when the stdin File passed in has a non-nil Pcap
// stream; otherwise it returns an error.
func RunFilterProgram(prog *CompiledProgram, builtins *BuiltinRegistry, opts RunOptions, stdin, stdout, stderr *File) error {
	vm := NewVM(prog, builtins, stdin, stdout, stderr)

	inPath := opts.InputPath
	if inPath == "" {
		inPath = "-"
	}
	var inFile *File
	var err error
	if inPath == "-" {
		inFile = stdin
	} else {
		inFile, err = openPcapRead(inPath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", inPath, err)
		}
		defer inFile.Closer.Close()
	}
	if inFile.Pcap == nil {
		return fmt.Errorf("%s is not a pcap stream", inPath)
	}

	// Absent -s, filter output always goes somewhere: to -o's path if
	// given, otherwise to stdout carrying the input stream's original
	// global header (§8 scenario 6).
	if !opts.SuppressDefaultEmit {
		if opts.OutputPath != "" {
			outFile, err := createPcapWrite(opts.OutputPath, inFile.Pcap.LinkType)
			if err != nil {
				return fmt.Errorf("opening %s: %w", opts.OutputPath, err)
			}
			defer outFile.Closer.Close()
			vm.PcapOut = outFile.Pcap
		} else {
			vm.PcapOut = newPcapWriteStream(stdout.Writer, inFile.Pcap.LinkType)
			vm.PcapOut.Header = inFile.Pcap.Header
		}
	}

	// Run the prelude (every top-level statement outside `@` blocks) once.
	if _, err := vm.Run(); err != nil {
		return WrapErrorWithSource(err, "")
	}

	npIdx, hasNP := prog.ImplicitVar["NP"]
	plIdx, hasPL := prog.ImplicitVar["PL"]
	wlIdx, hasWL := prog.ImplicitVar["WL"]
	tssIdx, hasTSS := prog.ImplicitVar["TSS"]
	tsuIdx, hasTSU := prog.ImplicitVar["TSU"]
	p0Idx := prog.ImplicitVar["$0"]
	p1Idx, hasP1 := prog.ImplicitVar["$1"]
	p2Idx, hasP2 := prog.ImplicitVar["$2"]
	p3Idx, hasP3 := prog.ImplicitVar["$3"]

	var np int64
	for {
		pkt, ok, err := readNextPacket(inFile)
		if err != nil {
			return fmt.Errorf("reading packet %d: %w", np, err)
		}
		if !ok {
			break
		}
		np++

		vm.setGlobal(p0Idx, PacketVal(pkt))
		if hasNP {
			vm.setGlobal(npIdx, Int(np))
		}
		if hasPL {
			vm.setGlobal(plIdx, Int(int64(pkt.CaptureInfo.CaptureLength)))
		}
		if hasWL {
			vm.setGlobal(wlIdx, Int(int64(pkt.CaptureInfo.Length)))
		}
		if hasTSS {
			vm.setGlobal(tssIdx, Int(pkt.CaptureInfo.Timestamp.Unix()))
		}
		if hasTSU {
			vm.setGlobal(tsuIdx, Int(int64(pkt.CaptureInfo.Timestamp.Nanosecond()/1000)))
		}
		if hasP1 {
			if pkt.Eth != nil {
				vm.setGlobal(p1Idx, LayerVal(pkt, "eth"))
			} else {
				vm.setGlobal(p1Idx, Null)
			}
		}
		if hasP2 {
			if pkt.IPv4 != nil {
				vm.setGlobal(p2Idx, LayerVal(pkt, "ipv4"))
			} else {
				vm.setGlobal(p2Idx, Null)
			}
		}
		if hasP3 {
			switch {
			case pkt.UDP != nil:
				vm.setGlobal(p3Idx, LayerVal(pkt, "udp"))
			case pkt.TCP != nil:
				vm.setGlobal(p3Idx, LayerVal(pkt, "tcp"))
			default:
				vm.setGlobal(p3Idx, Null)
			}
		}

		for _, fu := range prog.Filters {
			if fu.IsEnd {
				continue
			}
			if err := runFilterUnit(vm, fu); err != nil {
				return WrapErrorWithSource(err, "")
			}
		}
	}

	for _, fu := range prog.Filters {
		if !fu.IsEnd {
			continue
		}
		if err := runFilterUnit(vm, fu); err != nil {
			return WrapErrorWithSource(err, "")
		}
	}

	return nil
}

func runFilterUnit(vm *VM, fu *FilterUnit) error {
	matched := true
	if fu.Pattern != nil {
		v, err := vm.RunChunk(fu.Pattern)
		if err != nil {
			return err
		}
		matched = Truthy(v)
	}
	if !matched {
		return nil
	}
	_, err := vm.RunChunk(fu.Body)
	return err
}
