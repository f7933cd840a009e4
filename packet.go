// packet.go — the packet value and its layer property accessors (§4.J, §6).
//
// Grounded on gopacket/layers' decoded-layer accessor shape (a dependency
// added for this domain; no example repo's go.mod carries it). Property names follow §6's field lists for packet/eth/vlan/ipv4/
// udp exactly. eth/vlan/ipv4/udp properties are backed by a LayerView, a
// thin pointer onto the *Packet's already-decoded gopacket layer structs,
// so a script assignment like `$0.eth.ipv4.ttl = 1` mutates the same layer
// that pcap_write later re-serializes — not a throwaway copy.
package p2sh

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// timeWithUnixSec/timeWithNanos rebuild a CaptureInfo timestamp after a
// script mutates packet.sec/usec/nsec independently of each other.
func timeWithUnixSec(t time.Time, sec int64) time.Time {
	return time.Unix(sec, int64(t.Nanosecond())).UTC()
}

func timeWithNanos(t time.Time, nsec int64) time.Time {
	return time.Unix(t.Unix(), nsec).UTC()
}

// Packet wraps one captured frame plus its decoded layers and capture
// metadata (§3 "packet"). Decoding is lazy-ish: DecodePacket is called
// once by the pcap reader right after a frame is read, so property access
// never re-parses. NanoSecs records which time resolution the owning pcap
// stream's global header declared; packet.usec/packet.nsec are both
// derived from CaptureInfo.Timestamp and do not consult it.
type Packet struct {
	CaptureInfo gopacket.CaptureInfo
	Raw         []byte
	NanoSecs    bool

	Eth  *layers.Ethernet
	Vlan *layers.Dot1Q
	IPv4 *layers.IPv4
	IPv6 *layers.IPv6
	UDP  *layers.UDP
	TCP  *layers.TCP
}

func PacketVal(p *Packet) Value { return Value{Tag: TagPacket, Data: p} }

// DecodePacket parses raw per the link type captured in ci, populating
// whichever of Eth/Vlan/IPv4/IPv6/UDP/TCP are present; unrecognized or
// truncated layers are left nil rather than treated as a decode error —
// property access on a nil layer simply returns null (§9 "malformed
// packets").
func DecodePacket(linkType layers.LinkType, raw []byte, ci gopacket.CaptureInfo, nanoSecs bool) *Packet {
	pkt := &Packet{CaptureInfo: ci, Raw: raw, NanoSecs: nanoSecs}
	parsed := gopacket.NewPacket(raw, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	if l := parsed.Layer(layers.LayerTypeEthernet); l != nil {
		pkt.Eth, _ = l.(*layers.Ethernet)
	}
	if l := parsed.Layer(layers.LayerTypeDot1Q); l != nil {
		pkt.Vlan, _ = l.(*layers.Dot1Q)
	}
	if l := parsed.Layer(layers.LayerTypeIPv4); l != nil {
		pkt.IPv4, _ = l.(*layers.IPv4)
	}
	if l := parsed.Layer(layers.LayerTypeIPv6); l != nil {
		pkt.IPv6, _ = l.(*layers.IPv6)
	}
	if l := parsed.Layer(layers.LayerTypeUDP); l != nil {
		pkt.UDP, _ = l.(*layers.UDP)
	}
	if l := parsed.Layer(layers.LayerTypeTCP); l != nil {
		pkt.TCP, _ = l.(*layers.TCP)
	}
	return pkt
}

// packetProperty implements $0.sec, $0.caplen, $0.eth, etc. (§6
// "packet.{sec, usec|nsec, caplen, wirelen, eth, payload}").
func packetProperty(p *Packet, name string) (Value, error) {
	switch name {
	case "sec":
		return Int(p.CaptureInfo.Timestamp.Unix()), nil
	case "usec":
		return Int(int64(p.CaptureInfo.Timestamp.Nanosecond() / 1000)), nil
	case "nsec":
		return Int(int64(p.CaptureInfo.Timestamp.Nanosecond())), nil
	case "caplen":
		return Int(int64(p.CaptureInfo.CaptureLength)), nil
	case "wirelen":
		return Int(int64(p.CaptureInfo.Length)), nil
	case "eth":
		if p.Eth == nil {
			return Null, nil
		}
		return LayerVal(p, "eth"), nil
	case "payload":
		return Str(string(p.Raw)), nil
	default:
		return Null, fmt.Errorf("packet has no property %q", name)
	}
}

// setPacketProperty implements the writable half of packetProperty.
// `eth` is a structural view onto the decoded layer chain and can't be
// reassigned wholesale; `sec`/`usec`/`nsec`/`caplen`/`wirelen`/`payload`
// are plain scalar fields.
func setPacketProperty(p *Packet, name string, val Value) error {
	switch name {
	case "sec":
		n, err := intArg(val, "sec")
		if err != nil {
			return err
		}
		t := p.CaptureInfo.Timestamp
		p.CaptureInfo.Timestamp = timeWithUnixSec(t, n)
		return nil
	case "usec":
		n, err := uintArg(val, 32, "usec")
		if err != nil {
			return err
		}
		t := p.CaptureInfo.Timestamp
		p.CaptureInfo.Timestamp = timeWithNanos(t, n*1000)
		return nil
	case "nsec":
		n, err := uintArg(val, 32, "nsec")
		if err != nil {
			return err
		}
		t := p.CaptureInfo.Timestamp
		p.CaptureInfo.Timestamp = timeWithNanos(t, n)
		return nil
	case "caplen":
		n, err := uintArg(val, 32, "caplen")
		if err != nil {
			return err
		}
		p.CaptureInfo.CaptureLength = int(n)
		return nil
	case "wirelen":
		n, err := uintArg(val, 32, "wirelen")
		if err != nil {
			return err
		}
		p.CaptureInfo.Length = int(n)
		return nil
	case "payload":
		s, ok := val.Data.(string)
		if val.Tag != TagString || !ok {
			return fmt.Errorf("payload must be a string, got %s", val.Tag)
		}
		p.Raw = []byte(s)
		return nil
	case "eth":
		return fmt.Errorf("eth is a structural view and cannot be reassigned")
	default:
		return fmt.Errorf("packet has no property %q", name)
	}
}

// LayerView is a live, settable handle onto one of a *Packet's decoded
// layers (§6's eth/vlan/ipv4/udp property groups). Kind selects which
// layer's fields Get/Set dispatch against.
type LayerView struct {
	Pkt  *Packet
	Kind string
}

func LayerVal(p *Packet, kind string) Value {
	return Value{Tag: TagLayer, Data: &LayerView{Pkt: p, Kind: kind}}
}

func (lv *LayerView) Get(name string) (Value, error) {
	switch lv.Kind {
	case "eth":
		return getEthField(lv.Pkt, name)
	case "vlan":
		return getVlanField(lv.Pkt, name)
	case "ipv4":
		return getIPv4Field(lv.Pkt, name)
	case "udp":
		return getUDPField(lv.Pkt, name)
	case "tcp":
		return getTCPField(lv.Pkt, name)
	default:
		return Null, fmt.Errorf("unknown layer kind %q", lv.Kind)
	}
}

func (lv *LayerView) Set(name string, val Value) error {
	switch lv.Kind {
	case "eth":
		return setEthField(lv.Pkt, name, val)
	case "vlan":
		return setVlanField(lv.Pkt, name, val)
	case "ipv4":
		return setIPv4Field(lv.Pkt, name, val)
	case "udp":
		return setUDPField(lv.Pkt, name, val)
	case "tcp":
		return setTCPField(lv.Pkt, name, val)
	default:
		return fmt.Errorf("unknown layer kind %q", lv.Kind)
	}
}

// getEthField/setEthField implement §6's "eth.{src, dst, type, vlan,
// ipv4, payload}".
func getEthField(p *Packet, name string) (Value, error) {
	e := p.Eth
	if e == nil {
		return Null, fmt.Errorf("packet has no eth layer")
	}
	switch name {
	case "src":
		return Str(e.SrcMAC.String()), nil
	case "dst":
		return Str(e.DstMAC.String()), nil
	case "type":
		return Int(int64(e.EthernetType)), nil
	case "vlan":
		if p.Vlan == nil {
			return Null, nil
		}
		return LayerVal(p, "vlan"), nil
	case "ipv4":
		if p.IPv4 == nil {
			return Null, nil
		}
		return LayerVal(p, "ipv4"), nil
	case "payload":
		return Str(string(e.Payload)), nil
	default:
		return Null, fmt.Errorf("eth has no property %q", name)
	}
}

func setEthField(p *Packet, name string, val Value) error {
	e := p.Eth
	if e == nil {
		return fmt.Errorf("packet has no eth layer")
	}
	switch name {
	case "src":
		mac, err := parseMAC(val)
		if err != nil {
			return err
		}
		e.SrcMAC = mac
		return nil
	case "dst":
		mac, err := parseMAC(val)
		if err != nil {
			return err
		}
		e.DstMAC = mac
		return nil
	case "type":
		n, err := uintArg(val, 16, "type")
		if err != nil {
			return err
		}
		e.EthernetType = layers.EthernetType(n)
		return nil
	case "payload":
		s, err := strArg(val, "payload")
		if err != nil {
			return err
		}
		e.Payload = []byte(s)
		return nil
	case "vlan", "ipv4":
		return fmt.Errorf("%s is a structural view and cannot be reassigned", name)
	default:
		return fmt.Errorf("eth has no property %q", name)
	}
}

// getVlanField/setVlanField implement §6's "vlan.{id, priority, dei,
// type, vlan, ipv4, payload}". Double-tagging (vlan.vlan) isn't decoded,
// so it's always null.
func getVlanField(p *Packet, name string) (Value, error) {
	v := p.Vlan
	if v == nil {
		return Null, fmt.Errorf("packet has no vlan layer")
	}
	switch name {
	case "id":
		return Int(int64(v.VLANIdentifier)), nil
	case "priority":
		return Int(int64(v.Priority)), nil
	case "dei":
		return Bool(v.DropEligible), nil
	case "type":
		return Int(int64(v.Type)), nil
	case "vlan":
		return Null, nil
	case "ipv4":
		if p.IPv4 == nil {
			return Null, nil
		}
		return LayerVal(p, "ipv4"), nil
	case "payload":
		return Str(string(v.Payload)), nil
	default:
		return Null, fmt.Errorf("vlan has no property %q", name)
	}
}

func setVlanField(p *Packet, name string, val Value) error {
	v := p.Vlan
	if v == nil {
		return fmt.Errorf("packet has no vlan layer")
	}
	switch name {
	case "id":
		n, err := uintArg(val, 12, "id")
		if err != nil {
			return err
		}
		v.VLANIdentifier = uint16(n)
		return nil
	case "priority":
		n, err := uintArg(val, 3, "priority")
		if err != nil {
			return err
		}
		v.Priority = uint8(n)
		return nil
	case "dei":
		if val.Tag != TagBool {
			return fmt.Errorf("dei must be a bool, got %s", val.Tag)
		}
		v.DropEligible = val.Data.(bool)
		return nil
	case "type":
		n, err := uintArg(val, 16, "type")
		if err != nil {
			return err
		}
		v.Type = layers.EthernetType(n)
		return nil
	case "payload":
		s, err := strArg(val, "payload")
		if err != nil {
			return err
		}
		v.Payload = []byte(s)
		return nil
	case "vlan", "ipv4":
		return fmt.Errorf("%s is a structural view and cannot be reassigned", name)
	default:
		return fmt.Errorf("vlan has no property %q", name)
	}
}

// getIPv4Field/setIPv4Field implement §6's "ipv4.{version(ro), ihl,
// totlen, id, dscp, ecn, flags, fragoff, ttl, proto, checksum, src, dst,
// udp, payload}". dscp/ecn are derived from/recombined into gopacket's
// single TOS byte, since gopacket doesn't split them itself.
func getIPv4Field(p *Packet, name string) (Value, error) {
	ip := p.IPv4
	if ip == nil {
		return Null, fmt.Errorf("packet has no ipv4 layer")
	}
	switch name {
	case "version":
		return Int(int64(ip.Version)), nil
	case "ihl":
		return Int(int64(ip.IHL)), nil
	case "totlen":
		return Int(int64(ip.Length)), nil
	case "id":
		return Int(int64(ip.Id)), nil
	case "dscp":
		return Int(int64(ip.TOS >> 2)), nil
	case "ecn":
		return Int(int64(ip.TOS & 0x3)), nil
	case "flags":
		return Int(int64(ip.Flags)), nil
	case "fragoff":
		return Int(int64(ip.FragOffset)), nil
	case "ttl":
		return Int(int64(ip.TTL)), nil
	case "proto":
		return Int(int64(ip.Protocol)), nil
	case "checksum":
		return Int(int64(ip.Checksum)), nil
	case "src":
		return Str(ip.SrcIP.String()), nil
	case "dst":
		return Str(ip.DstIP.String()), nil
	case "udp":
		if p.UDP == nil {
			return Null, nil
		}
		return LayerVal(p, "udp"), nil
	case "tcp":
		if p.TCP == nil {
			return Null, nil
		}
		return LayerVal(p, "tcp"), nil
	case "payload":
		return Str(string(ip.Payload)), nil
	default:
		return Null, fmt.Errorf("ipv4 has no property %q", name)
	}
}

func setIPv4Field(p *Packet, name string, val Value) error {
	ip := p.IPv4
	if ip == nil {
		return fmt.Errorf("packet has no ipv4 layer")
	}
	switch name {
	case "version":
		return fmt.Errorf("version is read-only")
	case "ihl":
		n, err := uintArg(val, 4, "ihl")
		if err != nil {
			return err
		}
		ip.IHL = uint8(n)
		return nil
	case "totlen":
		n, err := uintArg(val, 16, "totlen")
		if err != nil {
			return err
		}
		ip.Length = uint16(n)
		return nil
	case "id":
		n, err := uintArg(val, 16, "id")
		if err != nil {
			return err
		}
		ip.Id = uint16(n)
		return nil
	case "dscp":
		n, err := uintArg(val, 6, "dscp")
		if err != nil {
			return err
		}
		ip.TOS = (ip.TOS & 0x3) | uint8(n<<2)
		return nil
	case "ecn":
		n, err := uintArg(val, 2, "ecn")
		if err != nil {
			return err
		}
		ip.TOS = (ip.TOS &^ 0x3) | uint8(n)
		return nil
	case "flags":
		n, err := uintArg(val, 3, "flags")
		if err != nil {
			return err
		}
		ip.Flags = layers.IPv4Flag(n)
		return nil
	case "fragoff":
		n, err := uintArg(val, 13, "fragoff")
		if err != nil {
			return err
		}
		ip.FragOffset = uint16(n)
		return nil
	case "ttl":
		n, err := uintArg(val, 8, "ttl")
		if err != nil {
			return err
		}
		ip.TTL = uint8(n)
		return nil
	case "proto":
		n, err := uintArg(val, 8, "proto")
		if err != nil {
			return err
		}
		ip.Protocol = layers.IPProtocol(n)
		return nil
	case "checksum":
		n, err := uintArg(val, 16, "checksum")
		if err != nil {
			return err
		}
		ip.Checksum = uint16(n)
		return nil
	case "src":
		addr, err := parseIPv4(val)
		if err != nil {
			return err
		}
		ip.SrcIP = addr
		return nil
	case "dst":
		addr, err := parseIPv4(val)
		if err != nil {
			return err
		}
		ip.DstIP = addr
		return nil
	case "payload":
		s, err := strArg(val, "payload")
		if err != nil {
			return err
		}
		ip.Payload = []byte(s)
		return nil
	case "udp", "tcp":
		return fmt.Errorf("%s is a structural view and cannot be reassigned", name)
	default:
		return fmt.Errorf("ipv4 has no property %q", name)
	}
}

// getUDPField/setUDPField implement §6's "udp.{srcport, dstport, len,
// checksum, payload}".
func getUDPField(p *Packet, name string) (Value, error) {
	u := p.UDP
	if u == nil {
		return Null, fmt.Errorf("packet has no udp layer")
	}
	switch name {
	case "srcport":
		return Int(int64(u.SrcPort)), nil
	case "dstport":
		return Int(int64(u.DstPort)), nil
	case "len":
		return Int(int64(u.Length)), nil
	case "checksum":
		return Int(int64(u.Checksum)), nil
	case "payload":
		return Str(string(u.Payload)), nil
	default:
		return Null, fmt.Errorf("udp has no property %q", name)
	}
}

func setUDPField(p *Packet, name string, val Value) error {
	u := p.UDP
	if u == nil {
		return fmt.Errorf("packet has no udp layer")
	}
	switch name {
	case "srcport":
		n, err := uintArg(val, 16, "srcport")
		if err != nil {
			return err
		}
		u.SrcPort = layers.UDPPort(n)
		return nil
	case "dstport":
		n, err := uintArg(val, 16, "dstport")
		if err != nil {
			return err
		}
		u.DstPort = layers.UDPPort(n)
		return nil
	case "len":
		n, err := uintArg(val, 16, "len")
		if err != nil {
			return err
		}
		u.Length = uint16(n)
		return nil
	case "checksum":
		n, err := uintArg(val, 16, "checksum")
		if err != nil {
			return err
		}
		u.Checksum = uint16(n)
		return nil
	case "payload":
		s, err := strArg(val, "payload")
		if err != nil {
			return err
		}
		u.Payload = []byte(s)
		return nil
	default:
		return fmt.Errorf("udp has no property %q", name)
	}
}

// getTCPField/setTCPField: tcp isn't named in §6's property list but is
// wired as a supplement alongside udp (§4.J step 2's "next layer
// (udp/…)"), in the same shape as udp where the fields overlap.
func getTCPField(p *Packet, name string) (Value, error) {
	t := p.TCP
	if t == nil {
		return Null, fmt.Errorf("packet has no tcp layer")
	}
	switch name {
	case "srcport":
		return Int(int64(t.SrcPort)), nil
	case "dstport":
		return Int(int64(t.DstPort)), nil
	case "seq":
		return Int(int64(t.Seq)), nil
	case "ack":
		return Int(int64(t.Ack)), nil
	case "syn":
		return Bool(t.SYN), nil
	case "fin":
		return Bool(t.FIN), nil
	case "rst":
		return Bool(t.RST), nil
	case "ackflag":
		return Bool(t.ACK), nil
	case "payload":
		return Str(string(t.Payload)), nil
	default:
		return Null, fmt.Errorf("tcp has no property %q", name)
	}
}

func setTCPField(p *Packet, name string, val Value) error {
	t := p.TCP
	if t == nil {
		return fmt.Errorf("packet has no tcp layer")
	}
	switch name {
	case "srcport":
		n, err := uintArg(val, 16, "srcport")
		if err != nil {
			return err
		}
		t.SrcPort = layers.TCPPort(n)
		return nil
	case "dstport":
		n, err := uintArg(val, 16, "dstport")
		if err != nil {
			return err
		}
		t.DstPort = layers.TCPPort(n)
		return nil
	case "seq":
		n, err := uintArg(val, 32, "seq")
		if err != nil {
			return err
		}
		t.Seq = uint32(n)
		return nil
	case "ack":
		n, err := uintArg(val, 32, "ack")
		if err != nil {
			return err
		}
		t.Ack = uint32(n)
		return nil
	case "syn":
		if val.Tag != TagBool {
			return fmt.Errorf("syn must be a bool, got %s", val.Tag)
		}
		t.SYN = val.Data.(bool)
		return nil
	case "fin":
		if val.Tag != TagBool {
			return fmt.Errorf("fin must be a bool, got %s", val.Tag)
		}
		t.FIN = val.Data.(bool)
		return nil
	case "rst":
		if val.Tag != TagBool {
			return fmt.Errorf("rst must be a bool, got %s", val.Tag)
		}
		t.RST = val.Data.(bool)
		return nil
	case "ackflag":
		if val.Tag != TagBool {
			return fmt.Errorf("ackflag must be a bool, got %s", val.Tag)
		}
		t.ACK = val.Data.(bool)
		return nil
	case "payload":
		s, err := strArg(val, "payload")
		if err != nil {
			return err
		}
		t.Payload = []byte(s)
		return nil
	default:
		return fmt.Errorf("tcp has no property %q", name)
	}
}

// fitsUint reports whether n fits in an unsigned field of the given
// bit width (§6 "mutations validated against bit widths").
func fitsUint(n int64, bits uint) bool {
	if n < 0 {
		return false
	}
	if bits >= 63 {
		return true
	}
	return n <= (int64(1)<<bits)-1
}

// uintArg validates val as an int Value fitting in an unsigned field of
// the given bit width, the shared guard behind every fixed-width pcap
// field mutation (vlan.id, ipv4.ttl, udp.srcport, ...).
func uintArg(val Value, bits uint, field string) (int64, error) {
	n, ok := asInt(val)
	if !ok {
		return 0, fmt.Errorf("%s must be an int, got %s", field, val.Tag)
	}
	if !fitsUint(n, bits) {
		return 0, fmt.Errorf("%s value %d does not fit in %d bits", field, n, bits)
	}
	return n, nil
}

func intArg(val Value, field string) (int64, error) {
	n, ok := asInt(val)
	if !ok {
		return 0, fmt.Errorf("%s must be an int, got %s", field, val.Tag)
	}
	return n, nil
}

func strArg(val Value, field string) (string, error) {
	if val.Tag != TagString {
		return "", fmt.Errorf("%s must be a string, got %s", field, val.Tag)
	}
	return val.Data.(string), nil
}

func parseMAC(val Value) (net.HardwareAddr, error) {
	s, err := strArg(val, "mac")
	if err != nil {
		return nil, err
	}
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != 6 {
		return nil, fmt.Errorf("invalid MAC address %q", s)
	}
	return mac, nil
}

func parseIPv4(val Value) (net.IP, error) {
	s, err := strArg(val, "addr")
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(s)
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return v4, nil
}
