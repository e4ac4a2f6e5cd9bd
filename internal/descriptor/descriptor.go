// Package descriptor implements the compiled network's on-wire/on-disk
// binary format (spec.md §6): a 16-byte header followed by tagged,
// length-prefixed sections. Encode/decode is hand-written manual
// encoding/binary.LittleEndian field-by-field marshaling, grounded on the
// reference pack's internal/uapi/marshal.go, which favors explicit offset
// arithmetic over reflection-based codecs for a small, fixed wire shape.
package descriptor

import (
	"bytes"
	"encoding/binary"
	"io"

	"mycelial/internal/errs"
)

// Magic identifies a Mycelial compiled descriptor.
var Magic = [4]byte{'M', 'Y', 'C', 'L'}

// Version is the current descriptor format generation. Bit-exact
// compatibility is only promised within one version (spec.md §6).
const Version uint16 = 1

// Section tags, in the fixed order they are always written.
const (
	SectionFrequencies uint32 = iota + 1
	SectionAgents
	SectionSockets
	SectionEntries
	SectionCode
)

// Header is the descriptor's fixed 16-byte preamble.
type Header struct {
	Magic    [4]byte
	Version  uint16
	Flags    uint16
	Sections uint32
	Reserved [4]byte
}

// FrequencyField is one name:type pair within a frequency's payload schema.
type FrequencyField struct {
	Name string
	Type string
}

// FrequencySpec is one entry in the frequency catalog.
type FrequencySpec struct {
	ID     uint32
	Name   string
	Fields []FrequencyField
}

// HandlerBinding is one (frequency, guard?, handler-body) binding declared
// by an agent spec. GuardExpr is empty when the binding is unguarded.
// Body carries the handler's raw source text for documentation/tooling;
// it is not interpreted by this implementation (see internal/compiler/ast
// package doc).
type HandlerBinding struct {
	FrequencyName string
	GuardExpr     string
	Body          string
}

// AgentSpec is one declared agent template in spawn order.
type AgentSpec struct {
	ID          uint32
	Name        string
	HyphalName  string
	StateFields []FrequencyField
	Handlers    []HandlerBinding
}

// SocketSpec is one declared signal flow between a source and destination
// name, in declared order.
type SocketSpec struct {
	Source string
	Dest   string
	Freq   string
}

// FruitingBodySpec is one exogenous entry/exit point.
type FruitingBodySpec struct {
	Name      string
	FreqName  string
	Direction string // "inject" or "observe"
}

// NetworkDescriptor is the compiled form of a network: everything the
// runtime needs to assemble arena, registry, routing, and dispatch without
// re-parsing source text.
type NetworkDescriptor struct {
	NetworkName   string
	Frequencies   []FrequencySpec
	Agents        []AgentSpec
	Sockets       []SocketSpec
	FruitingBodies []FruitingBodySpec
	Code          []byte // concatenated raw handler/rule source, for tooling
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", errs.Wrap("descriptor.readString", errs.KindIO, err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	strBuf := make([]byte, n)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return "", errs.Wrap("descriptor.readString", errs.KindIO, err)
	}
	return string(strBuf), nil
}

func writeFields(buf *bytes.Buffer, fields []FrequencyField) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(fields)))
	buf.Write(n[:])
	for _, f := range fields {
		writeString(buf, f.Name)
		writeString(buf, f.Type)
	}
}

func readFields(r *bytes.Reader) ([]FrequencyField, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return nil, errs.Wrap("descriptor.readFields", errs.KindIO, err)
	}
	count := binary.LittleEndian.Uint32(n[:])
	fields := make([]FrequencyField, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		typ, err := readString(r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, FrequencyField{Name: name, Type: typ})
	}
	return fields, nil
}

func writeSection(out *bytes.Buffer, tag uint32, payload []byte) {
	var tagBuf, lenBuf [4]byte
	binary.LittleEndian.PutUint32(tagBuf[:], tag)
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out.Write(tagBuf[:])
	out.Write(lenBuf[:])
	out.Write(payload)
}

// Encode serializes d into the binary wire format.
func Encode(d *NetworkDescriptor) ([]byte, error) {
	var out bytes.Buffer

	var hdr Header
	hdr.Magic = Magic
	hdr.Version = Version
	hdr.Sections = 5
	var hdrBuf bytes.Buffer
	hdrBuf.Write(hdr.Magic[:])
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], hdr.Version)
	hdrBuf.Write(u16[:])
	binary.LittleEndian.PutUint16(u16[:], hdr.Flags)
	hdrBuf.Write(u16[:])
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], hdr.Sections)
	hdrBuf.Write(u32[:])
	hdrBuf.Write(hdr.Reserved[:])
	out.Write(hdrBuf.Bytes())

	// FREQUENCIES
	var freqBuf bytes.Buffer
	writeString(&freqBuf, d.NetworkName)
	var fc [4]byte
	binary.LittleEndian.PutUint32(fc[:], uint32(len(d.Frequencies)))
	freqBuf.Write(fc[:])
	for _, f := range d.Frequencies {
		var idBuf [4]byte
		binary.LittleEndian.PutUint32(idBuf[:], f.ID)
		freqBuf.Write(idBuf[:])
		writeString(&freqBuf, f.Name)
		writeFields(&freqBuf, f.Fields)
	}
	writeSection(&out, SectionFrequencies, freqBuf.Bytes())

	// AGENTS
	var agentBuf bytes.Buffer
	var ac [4]byte
	binary.LittleEndian.PutUint32(ac[:], uint32(len(d.Agents)))
	agentBuf.Write(ac[:])
	for _, a := range d.Agents {
		var idBuf [4]byte
		binary.LittleEndian.PutUint32(idBuf[:], a.ID)
		agentBuf.Write(idBuf[:])
		writeString(&agentBuf, a.Name)
		writeString(&agentBuf, a.HyphalName)
		writeFields(&agentBuf, a.StateFields)
		var hc [4]byte
		binary.LittleEndian.PutUint32(hc[:], uint32(len(a.Handlers)))
		agentBuf.Write(hc[:])
		for _, hBind := range a.Handlers {
			writeString(&agentBuf, hBind.FrequencyName)
			writeString(&agentBuf, hBind.GuardExpr)
			writeString(&agentBuf, hBind.Body)
		}
	}
	writeSection(&out, SectionAgents, agentBuf.Bytes())

	// SOCKETS
	var sockBuf bytes.Buffer
	var sc [4]byte
	binary.LittleEndian.PutUint32(sc[:], uint32(len(d.Sockets)))
	sockBuf.Write(sc[:])
	for _, s := range d.Sockets {
		writeString(&sockBuf, s.Source)
		writeString(&sockBuf, s.Dest)
		writeString(&sockBuf, s.Freq)
	}
	writeSection(&out, SectionSockets, sockBuf.Bytes())

	// ENTRIES (fruiting bodies)
	var entryBuf bytes.Buffer
	var ec [4]byte
	binary.LittleEndian.PutUint32(ec[:], uint32(len(d.FruitingBodies)))
	entryBuf.Write(ec[:])
	for _, fb := range d.FruitingBodies {
		writeString(&entryBuf, fb.Name)
		writeString(&entryBuf, fb.FreqName)
		writeString(&entryBuf, fb.Direction)
	}
	writeSection(&out, SectionEntries, entryBuf.Bytes())

	// CODE
	writeSection(&out, SectionCode, d.Code)

	return out.Bytes(), nil
}

// Decode parses the binary wire format back into a NetworkDescriptor.
func Decode(data []byte) (*NetworkDescriptor, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
	}
	if magic != Magic {
		return nil, errs.New("descriptor.Decode", errs.KindIO, "bad magic: not a mycelial descriptor")
	}
	var u16 [2]byte
	if _, err := io.ReadFull(r, u16[:]); err != nil {
		return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
	}
	version := binary.LittleEndian.Uint16(u16[:])
	if version != Version {
		return nil, errs.New("descriptor.Decode", errs.KindIO, "unsupported descriptor version")
	}
	if _, err := io.ReadFull(r, u16[:]); err != nil { // flags, unused
		return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
	}
	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
	}
	sections := binary.LittleEndian.Uint32(u32[:])
	var reserved [4]byte
	if _, err := io.ReadFull(r, reserved[:]); err != nil {
		return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
	}

	d := &NetworkDescriptor{}
	for i := uint32(0); i < sections; i++ {
		var tagBuf, lenBuf [4]byte
		if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
			return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
		}
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
		}
		tag := binary.LittleEndian.Uint32(tagBuf[:])
		length := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
		}
		pr := bytes.NewReader(payload)

		switch tag {
		case SectionFrequencies:
			name, err := readString(pr)
			if err != nil {
				return nil, err
			}
			d.NetworkName = name
			var cBuf [4]byte
			if _, err := io.ReadFull(pr, cBuf[:]); err != nil {
				return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
			}
			count := binary.LittleEndian.Uint32(cBuf[:])
			for j := uint32(0); j < count; j++ {
				var idBuf [4]byte
				if _, err := io.ReadFull(pr, idBuf[:]); err != nil {
					return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
				}
				fname, err := readString(pr)
				if err != nil {
					return nil, err
				}
				fields, err := readFields(pr)
				if err != nil {
					return nil, err
				}
				d.Frequencies = append(d.Frequencies, FrequencySpec{
					ID: binary.LittleEndian.Uint32(idBuf[:]), Name: fname, Fields: fields,
				})
			}

		case SectionAgents:
			var cBuf [4]byte
			if _, err := io.ReadFull(pr, cBuf[:]); err != nil {
				return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
			}
			count := binary.LittleEndian.Uint32(cBuf[:])
			for j := uint32(0); j < count; j++ {
				var idBuf [4]byte
				if _, err := io.ReadFull(pr, idBuf[:]); err != nil {
					return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
				}
				name, err := readString(pr)
				if err != nil {
					return nil, err
				}
				hyphal, err := readString(pr)
				if err != nil {
					return nil, err
				}
				stateFields, err := readFields(pr)
				if err != nil {
					return nil, err
				}
				var hc [4]byte
				if _, err := io.ReadFull(pr, hc[:]); err != nil {
					return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
				}
				hCount := binary.LittleEndian.Uint32(hc[:])
				handlers := make([]HandlerBinding, 0, hCount)
				for k := uint32(0); k < hCount; k++ {
					freqName, err := readString(pr)
					if err != nil {
						return nil, err
					}
					guard, err := readString(pr)
					if err != nil {
						return nil, err
					}
					body, err := readString(pr)
					if err != nil {
						return nil, err
					}
					handlers = append(handlers, HandlerBinding{FrequencyName: freqName, GuardExpr: guard, Body: body})
				}
				d.Agents = append(d.Agents, AgentSpec{
					ID: binary.LittleEndian.Uint32(idBuf[:]), Name: name, HyphalName: hyphal,
					StateFields: stateFields, Handlers: handlers,
				})
			}

		case SectionSockets:
			var cBuf [4]byte
			if _, err := io.ReadFull(pr, cBuf[:]); err != nil {
				return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
			}
			count := binary.LittleEndian.Uint32(cBuf[:])
			for j := uint32(0); j < count; j++ {
				src, err := readString(pr)
				if err != nil {
					return nil, err
				}
				dst, err := readString(pr)
				if err != nil {
					return nil, err
				}
				freq, err := readString(pr)
				if err != nil {
					return nil, err
				}
				d.Sockets = append(d.Sockets, SocketSpec{Source: src, Dest: dst, Freq: freq})
			}

		case SectionEntries:
			var cBuf [4]byte
			if _, err := io.ReadFull(pr, cBuf[:]); err != nil {
				return nil, errs.Wrap("descriptor.Decode", errs.KindIO, err)
			}
			count := binary.LittleEndian.Uint32(cBuf[:])
			for j := uint32(0); j < count; j++ {
				name, err := readString(pr)
				if err != nil {
					return nil, err
				}
				freq, err := readString(pr)
				if err != nil {
					return nil, err
				}
				dir, err := readString(pr)
				if err != nil {
					return nil, err
				}
				d.FruitingBodies = append(d.FruitingBodies, FruitingBodySpec{Name: name, FreqName: freq, Direction: dir})
			}

		case SectionCode:
			d.Code = append([]byte(nil), payload...)
		}
	}
	return d, nil
}
