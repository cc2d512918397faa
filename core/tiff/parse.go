package tiff

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

const (
	headerSize = 8
	entrySize  = 12
	// entry count field plus the next-IFD pointer
	tableOverhead = 6
)

// Parse decodes a TIFF-structured metadata segment into a Tree. seg must
// begin at the TIFF header ("II"/"MM" + 0x002A); every offset inside the
// segment is relative to that header, not to the enclosing file.
//
// Parsing is best-effort: entries with out-of-bounds offsets are dropped
// and a sub-tree that cycles back onto a visited offset is abandoned, but
// the rest of the structure is still decoded. When that happens Parse
// returns the partial Tree together with a multierror describing every
// dropped piece. Callers that must not re-serialize a lossy tree treat a
// non-nil error as fatal; callers that only display the tree can keep it.
func Parse(seg []byte) (*Tree, error) {
	if len(seg) < headerSize {
		return nil, fmt.Errorf("%w: segment shorter than TIFF header", ErrOffsetOutOfBounds)
	}
	var order binary.ByteOrder
	switch {
	case seg[0] == 'I' && seg[1] == 'I':
		order = binary.LittleEndian
	case seg[0] == 'M' && seg[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF header: unknown byte ordering %q", seg[:2])
	}
	if order.Uint16(seg[2:4]) != 0x002A {
		return nil, fmt.Errorf("invalid TIFF header: bad magic %#04x", order.Uint16(seg[2:4]))
	}

	p := &parser{seg: seg, order: order, visited: make(map[uint32]bool)}
	root, err := p.parseIFD(order.Uint32(seg[4:8]), PrimarySpace)
	if root == nil {
		return nil, err
	}
	return &Tree{Order: order, Root: root}, err
}

type parser struct {
	seg     []byte
	order   binary.ByteOrder
	visited map[uint32]bool
}

// inBounds reports whether [pos, pos+n) lies inside the segment, guarding
// against uint32 wraparound.
func (p *parser) inBounds(pos, n uint32) bool {
	return pos+n >= pos && pos+n <= uint32(len(p.seg))
}

// parseIFD decodes the directory at pos, its sub-IFDs, and (for top-level
// spaces) the chain hanging off its next pointer. A nil IFD with a non-nil
// error means the directory itself was unreadable; a non-nil IFD may still
// carry a multierror of dropped entries.
func (p *parser) parseIFD(pos uint32, space Space) (*IFD, error) {
	if p.visited[pos] {
		return nil, fmt.Errorf("%s IFD at %#x: %w", space.Name(), pos, ErrCyclicStructure)
	}
	p.visited[pos] = true

	if !p.inBounds(pos, 2) {
		return nil, fmt.Errorf("%s IFD at %#x: entry count: %w", space.Name(), pos, ErrOffsetOutOfBounds)
	}
	count := uint32(p.order.Uint16(p.seg[pos:]))
	if !p.inBounds(pos, tableOverhead+count*entrySize) {
		return nil, fmt.Errorf("%s IFD at %#x: table of %d entries: %w",
			space.Name(), pos, count, ErrOffsetOutOfBounds)
	}

	ifd := &IFD{Space: space, Sub: make(map[uint16]*IFD)}
	var errs error

	for i := uint32(0); i < count; i++ {
		ep := pos + 2 + i*entrySize
		e := &Entry{
			Tag:   p.order.Uint16(p.seg[ep:]),
			Type:  DataType(p.order.Uint16(p.seg[ep+2:])),
			Count: p.order.Uint32(p.seg[ep+4:]),
			order: p.order,
		}

		size := e.Type.Size()
		if size == 0 {
			// Unknown type code: keep the raw value field so the entry
			// round-trips unchanged instead of destroying valid-but-
			// unrecognized metadata.
			e.opaque = true
			e.Val = append([]byte(nil), p.seg[ep+8:ep+12]...)
			ifd.Entries = append(ifd.Entries, e)
			continue
		}

		valLen := size * e.Count
		if e.Count != 0 && valLen/e.Count != size {
			errs = multierror.Append(errs, fmt.Errorf(
				"%s IFD: tag %#04x count %d overflows: %w",
				space.Name(), e.Tag, e.Count, ErrOffsetOutOfBounds))
			continue
		}
		if valLen > 4 {
			off := p.order.Uint32(p.seg[ep+8:])
			if !p.inBounds(off, valLen) {
				errs = multierror.Append(errs, fmt.Errorf(
					"%s IFD: tag %#04x value at %#x+%d: %w",
					space.Name(), e.Tag, off, valLen, ErrOffsetOutOfBounds))
				continue
			}
			e.Val = append([]byte(nil), p.seg[off:off+valLen]...)
		} else {
			e.Val = append([]byte(nil), p.seg[ep+8:ep+8+valLen]...)
		}

		if sub, ok := subSpaceFor(space, e); ok {
			subOff := uint32(e.Int(0))
			child, err := p.parseIFD(subOff, sub)
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			if child == nil {
				// Dangling or cyclic pointer: drop the pointer entry too,
				// a pointer to nothing cannot be re-serialized.
				continue
			}
			ifd.Sub[e.Tag] = child
		}
		ifd.Entries = append(ifd.Entries, e)
	}

	if err := p.captureImageData(ifd); err != nil {
		errs = multierror.Append(errs, err)
	}

	nextPos := pos + 2 + count*entrySize
	next := p.order.Uint32(p.seg[nextPos:])
	if next != 0 {
		if space == PrimarySpace || space == ThumbnailSpace {
			child, err := p.parseIFD(next, ThumbnailSpace)
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			ifd.Next = child
		} else {
			// Embedded IFDs are reached by pointer tags and must terminate.
			errs = multierror.Append(errs, fmt.Errorf(
				"%s IFD: unexpected next-IFD pointer %#x ignored", space.Name(), next))
		}
	}
	return ifd, errs
}

// subSpaceFor recognises sub-IFD pointer entries by tag and namespace:
// Exif and GPS pointers live in the primary chain, the Interop pointer in
// the Exif IFD.
func subSpaceFor(space Space, e *Entry) (Space, bool) {
	if e.Type != DTLong || e.Count != 1 {
		return 0, false
	}
	switch {
	case (space == PrimarySpace || space == ThumbnailSpace) && e.Tag == TagExifIFD:
		return ExifSpace, true
	case (space == PrimarySpace || space == ThumbnailSpace) && e.Tag == TagGPSIFD:
		return GPSSpace, true
	case space == ExifSpace && e.Tag == TagInteropIFD:
		return InteropSpace, true
	}
	return 0, false
}

// captureImageData snapshots the byte ranges referenced by offset/size tag
// pairs (pixel strips, tiles, embedded thumbnail) so the serializer can lay
// them out again and rewrite the offsets.
func (p *parser) captureImageData(ifd *IFD) error {
	var errs error
	for _, pair := range imageDataPairs {
		offE := ifd.Find(pair[0])
		sizeE := ifd.Find(pair[1])
		if offE == nil || sizeE == nil || offE.opaque || sizeE.opaque {
			continue
		}
		if offE.Count != sizeE.Count {
			errs = multierror.Append(errs, fmt.Errorf(
				"%s IFD: tags %#04x/%#04x counts differ (%d vs %d)",
				ifd.Space.Name(), pair[0], pair[1], offE.Count, sizeE.Count))
			continue
		}
		id := imageData{offsetTag: pair[0], segments: make([][]byte, offE.Count)}
		ok := true
		for i := uint32(0); i < offE.Count; i++ {
			off := uint32(offE.Int(int(i)))
			size := uint32(sizeE.Int(int(i)))
			if !p.inBounds(off, size) {
				errs = multierror.Append(errs, fmt.Errorf(
					"%s IFD: image data %#04x[%d] at %#x+%d: %w",
					ifd.Space.Name(), pair[0], i, off, size, ErrOffsetOutOfBounds))
				ok = false
				break
			}
			id.segments[i] = append([]byte(nil), p.seg[off:off+size]...)
		}
		if ok {
			ifd.imageData = append(ifd.imageData, id)
		}
	}
	return errs
}
