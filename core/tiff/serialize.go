package tiff

import (
	"encoding/binary"
	"fmt"
)

// Serialize rebuilds a valid TIFF byte stream from the tree. The layout is
// recomputed from scratch (IFD tables first, then each IFD's data pool,
// then image data and sub-IFD blocks) so every offset, pointer tag, and
// next-IFD link is internally consistent regardless of how the original
// segment was laid out. Surviving entries keep their original relative
// order.
//
// Callers decide what to do with an empty tree (omit the segment or emit
// the empty shell this produces).
func Serialize(t *Tree) ([]byte, error) {
	if t == nil || t.Root == nil {
		return nil, fmt.Errorf("tiff: nil tree")
	}
	s := &serializer{
		order:    t.Order,
		entryOff: make(map[*Entry]uint32),
		segOffs:  make(map[*imageData][]uint32),
	}

	total := s.place(t.Root, headerSize)
	buf := make([]byte, total)

	// TIFF header: byte order mark, 0x002A, offset of IFD0.
	if t.Order == binary.ByteOrder(binary.BigEndian) {
		copy(buf, "MM")
	} else {
		copy(buf, "II")
	}
	t.Order.PutUint16(buf[2:], 0x002A)
	t.Order.PutUint32(buf[4:], headerSize)

	if err := s.write(buf, t.Root); err != nil {
		return nil, err
	}
	return buf, nil
}

type serializer struct {
	order    binary.ByteOrder
	entryOff map[*Entry]uint32
	segOffs  map[*imageData][]uint32
}

func align2(pos uint32) uint32 {
	return pos + pos%2
}

// place assigns offsets to the IFD at pos, its pooled values, image data,
// sub-IFD trees, and chain, leaf positions depending only on what was laid
// out before them. Returns the position past the last byte used.
func (s *serializer) place(ifd *IFD, pos uint32) uint32 {
	ifd.off = pos
	table := uint32(2 + len(ifd.Entries)*entrySize + 4)
	ifd.dataOff = pos + table
	pos = ifd.dataOff

	for _, e := range ifd.Entries {
		if size := e.ValSize(); size > 4 {
			s.entryOff[e] = pos
			pos += align2(size)
		}
	}

	for i := range ifd.imageData {
		id := &ifd.imageData[i]
		if ifd.Find(id.offsetTag) == nil {
			continue // offset entry was deleted with its data
		}
		offs := make([]uint32, len(id.segments))
		for j, seg := range id.segments {
			pos = align2(pos)
			offs[j] = pos
			pos += uint32(len(seg))
		}
		s.segOffs[id] = offs
	}

	// Sub-IFDs nest leaf-first in entry order, each inside the region that
	// follows its parent's pool.
	for _, e := range ifd.Entries {
		if sub, ok := ifd.Sub[e.Tag]; ok {
			pos = s.place(sub, align2(pos))
		}
	}

	if ifd.Next != nil {
		pos = s.place(ifd.Next, align2(pos))
	}
	return pos
}

func (s *serializer) write(buf []byte, ifd *IFD) error {
	order := s.order
	order.PutUint16(buf[ifd.off:], uint16(len(ifd.Entries)))
	p := ifd.off + 2

	for _, e := range ifd.Entries {
		order.PutUint16(buf[p:], e.Tag)
		order.PutUint16(buf[p+2:], uint16(e.Type))
		order.PutUint32(buf[p+4:], e.Count)

		switch {
		case e.opaque:
			copy(buf[p+8:p+12], e.Val)

		case ifd.Sub[e.Tag] != nil:
			order.PutUint32(buf[p+8:], ifd.Sub[e.Tag].off)

		default:
			val := e.Val
			if isImageDataOffsetTag(e.Tag) {
				rebuilt, err := s.rebuiltOffsets(ifd, e)
				if err != nil {
					return err
				}
				if rebuilt != nil {
					val = rebuilt
				}
			}
			if size := e.ValSize(); size > 4 {
				off := s.entryOff[e]
				order.PutUint32(buf[p+8:], off)
				copy(buf[off:off+size], val)
			} else {
				copy(buf[p+8:p+8+size], val)
			}
		}
		p += entrySize
	}

	var next uint32
	if ifd.Next != nil {
		next = ifd.Next.off
	}
	order.PutUint32(buf[p:], next)

	for i := range ifd.imageData {
		id := &ifd.imageData[i]
		offs, ok := s.segOffs[id]
		if !ok {
			continue
		}
		for j, seg := range id.segments {
			copy(buf[offs[j]:], seg)
		}
	}

	for _, e := range ifd.Entries {
		if sub, ok := ifd.Sub[e.Tag]; ok {
			if err := s.write(buf, sub); err != nil {
				return err
			}
		}
	}
	if ifd.Next != nil {
		return s.write(buf, ifd.Next)
	}
	return nil
}

// rebuiltOffsets re-encodes an image-data offset entry (StripOffsets,
// TileOffsets, JPEGInterchangeFormat, ...) against the freshly assigned
// segment positions. Returns nil when the entry has no captured segments.
func (s *serializer) rebuiltOffsets(ifd *IFD, e *Entry) ([]byte, error) {
	for i := range ifd.imageData {
		id := &ifd.imageData[i]
		if id.offsetTag != e.Tag {
			continue
		}
		offs, ok := s.segOffs[id]
		if !ok || uint32(len(offs)) != e.Count {
			return nil, nil
		}
		val := make([]byte, e.ValSize())
		for j, off := range offs {
			switch e.Type {
			case DTLong:
				s.order.PutUint32(val[j*4:], off)
			case DTShort:
				if off > 0xFFFF {
					return nil, fmt.Errorf("tiff: image data offset %#x does not fit SHORT tag %#04x", off, e.Tag)
				}
				s.order.PutUint16(val[j*2:], uint16(off))
			default:
				return nil, fmt.Errorf("tiff: image data offset tag %#04x has type %s", e.Tag, e.Type)
			}
		}
		return val, nil
	}
	return nil, nil
}
