// pcap.go — pcap file codec, wired to github.com/google/gopacket/pcapgo
// (§4.J pcap I/O; DOMAIN STACK in SPEC_FULL.md).
package p2sh

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const (
	pcapMagicUsec      = 0xa1b2c3d4
	pcapMagicUsecSwap  = 0xd4c3b2a1
	pcapMagicNsec      = 0xa1b23c4d
	pcapMagicNsecSwap  = 0x4d3cb2a1
	pcapGlobalHdrBytes = 24
)

// PcapHeader is the pcap global file header (§6's "pcap.{magic, major,
// minor, thiszone, sigflags, snaplen, linktype}" property group), kept as
// plain mutable fields so a script can read and rewrite them through a
// pcap-backed File value before any packet is written.
type PcapHeader struct {
	Magic    uint32
	Major    uint16
	Minor    uint16
	ThisZone int32
	SigFigs  uint32
	SnapLen  uint32
	LinkType uint32
	BigEndian bool
	NanoSecs  bool
}

// PcapStream is the pcap-specific half of an open File: either a reader
// positioned at the next frame, or a writer whose header is (re)written
// lazily on the first WritePacket call so script mutations to Header made
// beforehand still take effect.
type PcapStream struct {
	LinkType layers.LinkType
	Reader   *pcapgo.Reader
	NgReader *pcapgo.NgReader
	Writer   *pcapgo.Writer
	NanoSecs bool

	Header        PcapHeader
	rawWriter     io.Writer
	headerWritten bool
}

// readPcapHeader parses the 24-byte pcap global header manually (rather
// than relying on pcapgo.Reader's unexported internals) so every field,
// including thiszone/sigfigs, is available for script mutation.
func readPcapHeader(f *os.File) (PcapHeader, error) {
	buf := make([]byte, pcapGlobalHdrBytes)
	if _, err := io.ReadFull(f, buf); err != nil {
		return PcapHeader{}, fmt.Errorf("not a pcap file: %w", err)
	}
	magicLE := binary.LittleEndian.Uint32(buf[0:4])
	var h PcapHeader
	var order binary.ByteOrder
	switch magicLE {
	case pcapMagicUsec:
		order, h.BigEndian, h.NanoSecs = binary.LittleEndian, false, false
	case pcapMagicNsec:
		order, h.BigEndian, h.NanoSecs = binary.LittleEndian, false, true
	case pcapMagicUsecSwap:
		order, h.BigEndian, h.NanoSecs = binary.BigEndian, true, false
	case pcapMagicNsecSwap:
		order, h.BigEndian, h.NanoSecs = binary.BigEndian, true, true
	default:
		return PcapHeader{}, fmt.Errorf("not a pcap file: bad magic %#x", magicLE)
	}
	h.Magic = order.Uint32(buf[0:4])
	h.Major = order.Uint16(buf[4:6])
	h.Minor = order.Uint16(buf[6:8])
	h.ThisZone = int32(order.Uint32(buf[8:12]))
	h.SigFigs = order.Uint32(buf[12:16])
	h.SnapLen = order.Uint32(buf[16:20])
	h.LinkType = order.Uint32(buf[20:24])
	return h, nil
}

// writePcapHeader serializes h back to its original 24-byte form.
func writePcapHeader(w io.Writer, h *PcapHeader) error {
	order := binary.ByteOrder(binary.LittleEndian)
	if h.BigEndian {
		order = binary.BigEndian
	}
	buf := make([]byte, pcapGlobalHdrBytes)
	order.PutUint32(buf[0:4], h.Magic)
	order.PutUint16(buf[4:6], h.Major)
	order.PutUint16(buf[6:8], h.Minor)
	order.PutUint32(buf[8:12], uint32(h.ThisZone))
	order.PutUint32(buf[12:16], h.SigFigs)
	order.PutUint32(buf[16:20], h.SnapLen)
	order.PutUint32(buf[20:24], h.LinkType)
	_, err := w.Write(buf)
	return err
}

func defaultPcapHeader(linkType layers.LinkType) PcapHeader {
	return PcapHeader{
		Magic:    pcapMagicUsec,
		Major:    2,
		Minor:    4,
		ThisZone: 0,
		SigFigs:  0,
		SnapLen:  65535,
		LinkType: uint32(linkType),
	}
}

// openPcapRead opens path for reading and sniffs its pcap framing. The
// global header is parsed by hand first (so Header is populated for
// script access), then the file is rewound and handed to pcapgo so record
// decoding proceeds normally.
func openPcapRead(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hdr, err := readPcapHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("not a pcap file: %w", err)
	}
	ps := &PcapStream{LinkType: r.LinkType(), Reader: r, NanoSecs: hdr.NanoSecs, Header: hdr, headerWritten: true}
	return &File{Name: path, Mode: ModeRead, Closer: f, IsPcap: true, Pcap: ps}, nil
}

// createPcapWrite opens path for writing. newPcapWriteStream defers the
// header write to the first WritePacket call.
func createPcapWrite(path string, linkType layers.LinkType) (*File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	ps := newPcapWriteStream(f, linkType)
	return &File{Name: path, Mode: ModeWrite, Closer: f, IsPcap: true, Pcap: ps}, nil
}

// newPcapWriteStream wraps an arbitrary io.Writer (a file, or the
// process's stdout) as a pcap output stream, used both by pcap_open("w")
// and by the filter driver's default-to-stdout output (§8 scenario 6:
// absent -s, filter output goes to stdout with the original global
// header).
func newPcapWriteStream(w io.Writer, linkType layers.LinkType) *PcapStream {
	h := defaultPcapHeader(linkType)
	return &PcapStream{LinkType: linkType, rawWriter: w, Header: h}
}

// ensureHeaderWritten flushes Header (possibly script-mutated since
// newPcapWriteStream) before the stream's first packet, then hands off
// to pcapgo.Writer for record framing — WritePacket doesn't itself depend
// on pcapgo.Writer.WriteFileHeader having been called.
func (ps *PcapStream) ensureHeaderWritten() error {
	if ps.headerWritten {
		return nil
	}
	if err := writePcapHeader(ps.rawWriter, &ps.Header); err != nil {
		return err
	}
	ps.Writer = pcapgo.NewWriter(ps.rawWriter)
	ps.headerWritten = true
	return nil
}

// readNextPacket pulls and decodes the next frame, returning ok=false at
// clean EOF (distinguished from a hard read error per §7).
func readNextPacket(f *File) (*Packet, bool, error) {
	if f.Pcap == nil || f.Pcap.Reader == nil {
		return nil, false, fmt.Errorf("%s is not open for pcap reading", f.Name)
	}
	data, ci, err := f.Pcap.Reader.ReadPacketData()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return DecodePacket(f.Pcap.LinkType, data, ci, f.Pcap.NanoSecs), true, nil
}

func writePacket(f *File, p *Packet) error {
	if f.Pcap == nil || f.Pcap.rawWriter == nil {
		return fmt.Errorf("%s is not open for pcap writing", f.Name)
	}
	if err := f.Pcap.ensureHeaderWritten(); err != nil {
		return err
	}
	ci := p.CaptureInfo
	if ci.Timestamp.IsZero() {
		ci.Timestamp = time.Now()
	}
	if ci.CaptureLength == 0 {
		ci.CaptureLength = len(p.Raw)
	}
	if ci.Length == 0 {
		ci.Length = len(p.Raw)
	}
	return f.Pcap.Writer.WritePacket(ci, p.Raw)
}

// emitCurrentPacket implements OpEmit: write the implicit $0 global to the
// VM's configured pcap output, used by the filter driver's synthesized
// default action (§4.J: "a pattern with no block emits the packet").
func (vm *VM) emitCurrentPacket() error {
	if vm.PcapOut == nil {
		return nil // no output stream configured (-s / count-only mode)
	}
	idx, ok := vm.prog.ImplicitVar["$0"]
	if !ok {
		return vm.runtimeErr("internal: $0 is not bound")
	}
	v := vm.globalAt(idx)
	if v.Tag != TagPacket {
		return nil
	}
	pkt := v.Data.(*Packet)
	if err := vm.PcapOut.ensureHeaderWritten(); err != nil {
		return err
	}
	ci := pkt.CaptureInfo
	if ci.CaptureLength == 0 {
		ci.CaptureLength = len(pkt.Raw)
	}
	if ci.Length == 0 {
		ci.Length = len(pkt.Raw)
	}
	return vm.PcapOut.Writer.WritePacket(ci, pkt.Raw)
}

// pcapHeaderProperty/setPcapHeaderProperty implement §6's "pcap.{magic,
// major, minor, thiszone, sigflags, snaplen, linktype}" property group,
// exposed on pcap-backed File values. ok=false means name isn't one of
// these (so the caller can fall through to its own "no such property"
// error) rather than it being a read/validation failure.
func pcapHeaderProperty(h *PcapHeader, name string) (Value, bool, error) {
	switch name {
	case "magic":
		return Int(int64(h.Magic)), true, nil
	case "major":
		return Int(int64(h.Major)), true, nil
	case "minor":
		return Int(int64(h.Minor)), true, nil
	case "thiszone":
		return Int(int64(h.ThisZone)), true, nil
	case "sigflags":
		return Int(int64(h.SigFigs)), true, nil
	case "snaplen":
		return Int(int64(h.SnapLen)), true, nil
	case "linktype":
		return Int(int64(h.LinkType)), true, nil
	default:
		return Null, false, nil
	}
}

func setPcapHeaderProperty(h *PcapHeader, name string, val Value) (bool, error) {
	switch name {
	case "magic":
		n, err := uintArg(val, 32, "magic")
		if err != nil {
			return true, err
		}
		h.Magic = uint32(n)
		return true, nil
	case "major":
		n, err := uintArg(val, 16, "major")
		if err != nil {
			return true, err
		}
		h.Major = uint16(n)
		return true, nil
	case "minor":
		n, err := uintArg(val, 16, "minor")
		if err != nil {
			return true, err
		}
		h.Minor = uint16(n)
		return true, nil
	case "thiszone":
		n, err := intArg(val, "thiszone")
		if err != nil {
			return true, err
		}
		h.ThisZone = int32(n)
		return true, nil
	case "sigflags":
		n, err := uintArg(val, 32, "sigflags")
		if err != nil {
			return true, err
		}
		h.SigFigs = uint32(n)
		return true, nil
	case "snaplen":
		n, err := uintArg(val, 32, "snaplen")
		if err != nil {
			return true, err
		}
		h.SnapLen = uint32(n)
		return true, nil
	case "linktype":
		n, err := uintArg(val, 32, "linktype")
		if err != nil {
			return true, err
		}
		h.LinkType = uint32(n)
		return true, nil
	default:
		return false, nil
	}
}

func registerPcapBuiltins(r *BuiltinRegistry) {
	r.Register("pcap_open", 2, func(vm *VM, args []Value) (Value, error) {
		path, ok := args[0].Data.(string)
		if !ok {
			return Null, fmt.Errorf("pcap_open: path must be a string")
		}
		mode, ok := args[1].Data.(string)
		if !ok {
			return Null, fmt.Errorf("pcap_open: mode must be a string")
		}
		switch mode {
		case "r":
			f, err := openPcapRead(path)
			if err != nil {
				return vm.ioErr(errnoOf(err), err.Error()), nil
			}
			return FileVal(f), nil
		case "w":
			f, err := createPcapWrite(path, layers.LinkTypeEthernet)
			if err != nil {
				return vm.ioErr(errnoOf(err), err.Error()), nil
			}
			return FileVal(f), nil
		default:
			return Null, fmt.Errorf("pcap_open: mode must be \"r\" or \"w\", got %q", mode)
		}
	})

	r.Register("pcap_read", 1, func(vm *VM, args []Value) (Value, error) {
		f, ok := args[0].Data.(*File)
		if !ok {
			return Null, fmt.Errorf("pcap_read: argument must be a file")
		}
		pkt, ok, err := readNextPacket(f)
		if err != nil {
			return vm.ioErr(errnoOf(err), err.Error()), nil
		}
		if !ok {
			return Null, nil
		}
		return PacketVal(pkt), nil
	})

	r.Register("pcap_write", 2, func(vm *VM, args []Value) (Value, error) {
		f, ok := args[0].Data.(*File)
		if !ok {
			return Null, fmt.Errorf("pcap_write: first argument must be a file")
		}
		pkt, ok := args[1].Data.(*Packet)
		if !ok {
			return Null, fmt.Errorf("pcap_write: second argument must be a packet")
		}
		if err := writePacket(f, pkt); err != nil {
			return vm.ioErr(errnoOf(err), err.Error()), nil
		}
		return Null, nil
	})

	r.Register("pcap_close", 1, func(vm *VM, args []Value) (Value, error) {
		f, ok := args[0].Data.(*File)
		if !ok {
			return Null, fmt.Errorf("pcap_close: argument must be a file")
		}
		if f.Closed {
			return Null, nil
		}
		f.Closed = true
		if f.Closer != nil {
			if err := f.Closer.Close(); err != nil {
				return vm.ioErr(errnoOf(err), err.Error()), nil
			}
		}
		return Null, nil
	})

	// is_packet lets scripts branch on whether a value decoded cleanly
	// before chaining .eth/.ipv4/.udp property access.
	r.Register("is_packet", 1, func(vm *VM, args []Value) (Value, error) {
		return Bool(args[0].Tag == TagPacket), nil
	})
}
