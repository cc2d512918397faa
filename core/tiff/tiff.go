// Package tiff implements the EXIF/TIFF metadata codec: parsing an IFD tree
// out of a TIFF-structured byte segment, selectively mutating it, and
// re-serializing it with every offset recomputed.
package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Codec-level error taxonomy. All of these are wrapped with positional
// context before they surface.
var (
	// ErrOffsetOutOfBounds means an entry's declared offset/length falls
	// outside the segment. The entry is dropped; the rest of its IFD is
	// still parsed.
	ErrOffsetOutOfBounds = errors.New("offset out of bounds")

	// ErrCyclicStructure means an IFD offset was re-encountered while
	// walking the tree. The sub-tree is abandoned rather than followed.
	ErrCyclicStructure = errors.New("cyclic IFD structure")

	// ErrTypeMismatch means a replacement value does not match the original
	// entry's type/count contract. The single edit is rejected.
	ErrTypeMismatch = errors.New("replacement value type mismatch")
)

// DataType is the 2-byte TIFF value type code.
type DataType uint16

const (
	DTByte      DataType = 1
	DTAscii     DataType = 2
	DTShort     DataType = 3
	DTLong      DataType = 4
	DTRational  DataType = 5
	DTSByte     DataType = 6
	DTUndefined DataType = 7
	DTSShort    DataType = 8
	DTSLong     DataType = 9
	DTSRational DataType = 10
	DTFloat     DataType = 11
	DTDouble    DataType = 12
)

// typeSize gives the size in bytes of one component of each type.
var typeSize = map[DataType]uint32{
	DTByte:      1,
	DTAscii:     1,
	DTShort:     2,
	DTLong:      4,
	DTRational:  8,
	DTSByte:     1,
	DTUndefined: 1,
	DTSShort:    2,
	DTSLong:     4,
	DTSRational: 8,
	DTFloat:     4,
	DTDouble:    8,
}

// Size returns the component size of t, or 0 for an unknown type code.
func (t DataType) Size() uint32 { return typeSize[t] }

func (t DataType) String() string {
	switch t {
	case DTByte:
		return "byte"
	case DTAscii:
		return "ascii"
	case DTShort:
		return "short"
	case DTLong:
		return "long"
	case DTRational:
		return "rational"
	case DTSByte:
		return "sbyte"
	case DTUndefined:
		return "undefined"
	case DTSShort:
		return "sshort"
	case DTSLong:
		return "slong"
	case DTSRational:
		return "srational"
	case DTFloat:
		return "float"
	case DTDouble:
		return "double"
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// Space names the IFD a tag lives in. GPS and Interop tag IDs overlap the
// TIFF namespace, so registry lookups are space-scoped.
type Space uint8

const (
	PrimarySpace Space = iota
	ThumbnailSpace
	ExifSpace
	GPSSpace
	InteropSpace
)

func (s Space) Name() string {
	switch s {
	case PrimarySpace:
		return "Primary"
	case ThumbnailSpace:
		return "Thumbnail"
	case ExifSpace:
		return "Exif"
	case GPSSpace:
		return "GPS"
	case InteropSpace:
		return "Interop"
	}
	return "Unknown"
}

// Sub-IFD pointer tags.
const (
	TagExifIFD    uint16 = 0x8769
	TagGPSIFD     uint16 = 0x8825
	TagInteropIFD uint16 = 0xA005
)

// Offset/size tag pairs whose referenced byte ranges (strips, tiles,
// embedded thumbnail JPEG) travel with the IFD and get their offsets
// rewritten on serialization.
var imageDataPairs = [][2]uint16{
	{0x0111, 0x0117}, // StripOffsets / StripByteCounts
	{0x0120, 0x0121}, // FreeOffsets / FreeByteCounts
	{0x0144, 0x0145}, // TileOffsets / TileByteCounts
	{0x0201, 0x0202}, // JPEGInterchangeFormat / JPEGInterchangeFormatLength
}

func isImageDataOffsetTag(tag uint16) bool {
	for _, p := range imageDataPairs {
		if p[0] == tag {
			return true
		}
	}
	return false
}

// Rational is an exact integer ratio. No implicit float conversion happens
// anywhere in the codec; Float is an explicit, display-only helper.
type Rational struct {
	Num, Den int64
}

func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Entry is one IFD tag entry: ID, type, count, and the decoded value bytes.
// For unknown type codes the entry is opaque: Val holds the raw 4-byte
// value-or-offset field and round-trips unchanged.
type Entry struct {
	Tag   uint16
	Type  DataType
	Count uint32
	// Val holds Count*Type.Size() value bytes in segment byte order, or
	// the raw 4-byte field when the entry is opaque.
	Val []byte

	opaque bool
	order  binary.ByteOrder
}

// NewEntry builds an entry from already-encoded value bytes.
func NewEntry(tag uint16, typ DataType, count uint32, val []byte, order binary.ByteOrder) *Entry {
	return &Entry{Tag: tag, Type: typ, Count: count, Val: val, order: order}
}

// Opaque reports whether the entry carries an unrecognised type code and is
// preserved verbatim.
func (e *Entry) Opaque() bool { return e.opaque }

// ValSize returns the serialized size of the entry's value in bytes.
// Opaque values always fit the 4-byte field.
func (e *Entry) ValSize() uint32 {
	if e.opaque {
		return 4
	}
	return e.Type.Size() * e.Count
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Val = append([]byte(nil), e.Val...)
	return &c
}

// Int returns the i'th component as an integer. It panics when the type is
// not integral, matching the accessor contract of the decoder this codec
// round-trips against.
func (e *Entry) Int(i int) int64 {
	s := int(e.Type.Size())
	v := e.Val[i*s : i*s+s]
	switch e.Type {
	case DTByte, DTUndefined:
		return int64(v[0])
	case DTSByte:
		return int64(int8(v[0]))
	case DTShort:
		return int64(e.order.Uint16(v))
	case DTSShort:
		return int64(int16(e.order.Uint16(v)))
	case DTLong:
		return int64(e.order.Uint32(v))
	case DTSLong:
		return int64(int32(e.order.Uint32(v)))
	}
	panic("tiff: entry type is not integral")
}

// Rat returns the i'th component as an exact rational. It panics when the
// type is not rational.
func (e *Entry) Rat(i int) Rational {
	if e.Type != DTRational && e.Type != DTSRational {
		panic("tiff: entry type is not rational")
	}
	v := e.Val[i*8 : i*8+8]
	n := e.order.Uint32(v[:4])
	d := e.order.Uint32(v[4:])
	if e.Type == DTSRational {
		return Rational{Num: int64(int32(n)), Den: int64(int32(d))}
	}
	return Rational{Num: int64(n), Den: int64(d)}
}

// Ascii returns the entry value as a string with the trailing NUL removed.
// It panics when the type is not ASCII.
func (e *Entry) Ascii() string {
	if e.Type != DTAscii {
		panic("tiff: entry type is not ascii")
	}
	s := string(e.Val)
	return strings.TrimRight(s, "\x00")
}

// String renders the value for reports and the inspect command.
func (e *Entry) String() string {
	if e.opaque {
		return fmt.Sprintf("opaque %x", e.Val)
	}
	switch e.Type {
	case DTAscii:
		return fmt.Sprintf("%q", e.Ascii())
	case DTUndefined:
		if e.Count > 32 {
			return fmt.Sprintf("%d bytes", e.Count)
		}
		return fmt.Sprintf("%x", e.Val)
	case DTRational, DTSRational:
		parts := make([]string, e.Count)
		for i := range parts {
			parts[i] = e.Rat(i).String()
		}
		return strings.Join(parts, " ")
	case DTFloat, DTDouble:
		return fmt.Sprintf("%x", e.Val)
	default:
		parts := make([]string, e.Count)
		for i := range parts {
			parts[i] = fmt.Sprintf("%d", e.Int(i))
		}
		return strings.Join(parts, " ")
	}
}

// imageData is a run of byte ranges (strips, tiles, thumbnail JPEG) owned
// by an IFD, referenced by an offset tag and sized by a companion tag.
type imageData struct {
	offsetTag uint16
	segments  [][]byte
}

// IFD is one Image File Directory: its entries in file order, parsed
// sub-IFD trees keyed by the pointer tag that reached them, and the next
// IFD in the top-level chain.
type IFD struct {
	Space   Space
	Entries []*Entry
	Sub     map[uint16]*IFD
	Next    *IFD

	imageData []imageData

	// assigned during serialization
	off     uint32
	dataOff uint32
}

// Find returns the entry with the given tag, or nil.
func (ifd *IFD) Find(tag uint16) *Entry {
	for _, e := range ifd.Entries {
		if e.Tag == tag {
			return e
		}
	}
	return nil
}

// Empty reports whether the IFD, its sub-IFDs, and the rest of its chain
// hold no entries at all.
func (ifd *IFD) Empty() bool {
	if ifd == nil {
		return true
	}
	if len(ifd.Entries) > 0 {
		return false
	}
	for _, sub := range ifd.Sub {
		if !sub.Empty() {
			return false
		}
	}
	return ifd.Next.Empty()
}

// Tree is the parse result for one metadata segment: the IFD chain plus the
// byte order everything was (and will be) encoded with. A Tree is owned by
// a single file's processing; nothing is shared across files.
type Tree struct {
	Order binary.ByteOrder
	Root  *IFD
}

// Empty reports whether the tree holds no tag entries.
func (t *Tree) Empty() bool {
	return t == nil || t.Root.Empty()
}

// Walk visits every entry of every IFD, sub-IFDs included, in file order.
func (t *Tree) Walk(visit func(ifd *IFD, e *Entry)) {
	if t == nil {
		return
	}
	for ifd := t.Root; ifd != nil; ifd = ifd.Next {
		ifd.walk(visit)
	}
}

func (ifd *IFD) walk(visit func(ifd *IFD, e *Entry)) {
	for _, e := range ifd.Entries {
		visit(ifd, e)
		if sub, ok := ifd.Sub[e.Tag]; ok {
			sub.walk(visit)
		}
	}
}

// Count returns the total number of entries in the tree, pointer tags
// included.
func (t *Tree) Count() int {
	n := 0
	t.Walk(func(*IFD, *Entry) { n++ })
	return n
}
