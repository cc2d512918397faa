package tiff

import "encoding/binary"

// fixture builds raw TIFF segments byte by byte for parser tests.
type fixture struct {
	buf   []byte
	order binary.ByteOrder
}

func newFixture(order binary.ByteOrder) *fixture {
	f := &fixture{order: order}
	if order == binary.ByteOrder(binary.BigEndian) {
		f.raw('M', 'M')
	} else {
		f.raw('I', 'I')
	}
	f.u16(0x002A)
	f.u32(headerSize)
	return f
}

func (f *fixture) raw(b ...byte) *fixture {
	f.buf = append(f.buf, b...)
	return f
}

func (f *fixture) u16(v uint16) *fixture {
	var b [2]byte
	f.order.PutUint16(b[:], v)
	return f.raw(b[:]...)
}

func (f *fixture) u32(v uint32) *fixture {
	var b [4]byte
	f.order.PutUint32(b[:], v)
	return f.raw(b[:]...)
}

// entry appends a 12-byte IFD entry with an explicit value field.
func (f *fixture) entry(tag uint16, typ DataType, count, field uint32) *fixture {
	return f.u16(tag).u16(uint16(typ)).u32(count).u32(field)
}

func asciiEntry(tag uint16, s string, order binary.ByteOrder) *Entry {
	val := append([]byte(s), 0)
	return NewEntry(tag, DTAscii, uint32(len(val)), val, order)
}

func shortEntry(tag uint16, order binary.ByteOrder, vals ...uint16) *Entry {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		order.PutUint16(buf[i*2:], v)
	}
	return NewEntry(tag, DTShort, uint32(len(vals)), buf, order)
}

func longEntry(tag uint16, order binary.ByteOrder, vals ...uint32) *Entry {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(buf[i*4:], v)
	}
	return NewEntry(tag, DTLong, uint32(len(vals)), buf, order)
}

func ratEntry(tag uint16, order binary.ByteOrder, pairs ...[2]uint32) *Entry {
	buf := make([]byte, 8*len(pairs))
	for i, p := range pairs {
		order.PutUint32(buf[i*8:], p[0])
		order.PutUint32(buf[i*8+4:], p[1])
	}
	return NewEntry(tag, DTRational, uint32(len(pairs)), buf, order)
}

// pointerEntry is a sub-IFD pointer; the serializer fills in the offset.
func pointerEntry(tag uint16, order binary.ByteOrder) *Entry {
	return NewEntry(tag, DTLong, 1, make([]byte, 4), order)
}

// sampleTree is a camera-shaped tree: device and timestamp tags in the
// primary IFD, exposure data in the Exif IFD, and a San Francisco position
// in the GPS IFD.
func sampleTree(order binary.ByteOrder) *Tree {
	exifIFD := &IFD{Space: ExifSpace, Sub: map[uint16]*IFD{}}
	exifIFD.Entries = []*Entry{
		ratEntry(0x829A, order, [2]uint32{1, 250}),       // ExposureTime
		shortEntry(0x8827, order, 200),                   // ISOSpeedRatings
		asciiEntry(0x9003, "2024:05:01 10:30:00", order), // DateTimeOriginal
	}

	gpsIFD := &IFD{Space: GPSSpace, Sub: map[uint16]*IFD{}}
	gpsIFD.Entries = []*Entry{
		asciiEntry(0x0001, "N", order),
		ratEntry(0x0002, order, [2]uint32{37, 1}, [2]uint32{46, 1}, [2]uint32{1200, 100}),
		asciiEntry(0x0003, "W", order),
		ratEntry(0x0004, order, [2]uint32{122, 1}, [2]uint32{25, 1}, [2]uint32{0, 1}),
	}

	root := &IFD{Space: PrimarySpace, Sub: map[uint16]*IFD{}}
	root.Entries = []*Entry{
		asciiEntry(0x010F, "GoCam", order),                // Make
		asciiEntry(0x0110, "X100", order),                 // Model
		shortEntry(0x0112, order, 1),                      // Orientation
		asciiEntry(0x0131, "scrubtest 1.0", order),        // Software
		asciiEntry(0x0132, "2024:05:01 10:30:00", order),  // DateTime
		pointerEntry(TagExifIFD, order),
		pointerEntry(TagGPSIFD, order),
	}
	root.Sub[TagExifIFD] = exifIFD
	root.Sub[TagGPSIFD] = gpsIFD

	return &Tree{Order: order, Root: root}
}
