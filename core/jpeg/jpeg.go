// Package jpeg reads and writes JPEG marker-segment framing. It never
// touches entropy-coded scan data: everything from SOS onward is carried as
// one raw segment and written back byte-identical.
package jpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/proxypixel/metascrub/core"
)

// Marker values the splitter cares about.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	MarkerAPP1 = 0xE1
)

// ExifHeader prefixes the TIFF structure inside an APP1 segment.
var ExifHeader = []byte("Exif\x00\x00")

// Segment is one JPEG marker segment. Bare markers (SOI, EOI, RSTn) have
// nil Data; the Raw segment holds everything from the first scan byte to
// the end of the file.
type Segment struct {
	Marker byte
	Data   []byte // payload without the 2-byte length field
	Raw    bool   // entropy-coded data, copied verbatim
}

// Split walks the marker framing from SOI to SOS and returns the segment
// list. A declared segment length running past the buffer is
// ErrTruncated; the file is not a JPEG at all is ErrUnsupportedFormat.
func Split(data []byte) ([]Segment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, fmt.Errorf("%w: missing SOI marker", core.ErrUnsupportedFormat)
	}
	segs := []Segment{{Marker: markerSOI}}

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			return nil, fmt.Errorf("%w: expected marker at offset %d", core.ErrTruncated, i)
		}
		// fill bytes before a marker are legal
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			return nil, fmt.Errorf("%w: dangling marker prefix", core.ErrTruncated)
		}
		marker := data[i]
		i++

		switch {
		case marker == markerEOI:
			segs = append(segs, Segment{Marker: markerEOI})
			return segs, nil
		case marker == markerSOS:
			// Length-delimited SOS header, then raw scan data to EOF.
			if i+2 > len(data) {
				return nil, fmt.Errorf("%w: SOS header cut short", core.ErrTruncated)
			}
			segLen := int(binary.BigEndian.Uint16(data[i:])) - 2
			if segLen < 0 || i+2+segLen > len(data) {
				return nil, fmt.Errorf("%w: SOS length %d exceeds buffer", core.ErrTruncated, segLen)
			}
			segs = append(segs, Segment{Marker: markerSOS, Data: data[i+2 : i+2+segLen]})
			segs = append(segs, Segment{Raw: true, Data: data[i+2+segLen:]})
			return segs, nil
		case marker >= 0xD0 && marker <= 0xD7:
			// RSTn, no payload
			segs = append(segs, Segment{Marker: marker})
		default:
			if i+2 > len(data) {
				return nil, fmt.Errorf("%w: marker %#02x header cut short", core.ErrTruncated, marker)
			}
			segLen := int(binary.BigEndian.Uint16(data[i:])) - 2
			if segLen < 0 || i+2+segLen > len(data) {
				return nil, fmt.Errorf("%w: marker %#02x length %d exceeds buffer",
					core.ErrTruncated, marker, segLen)
			}
			segs = append(segs, Segment{Marker: marker, Data: data[i+2 : i+2+segLen]})
			i += 2 + segLen
		}
	}
	return segs, nil
}

// Join reassembles a JPEG byte stream, recomputing every segment length
// field.
func Join(segs []Segment) []byte {
	var buf bytes.Buffer
	for _, seg := range segs {
		if seg.Raw {
			buf.Write(seg.Data)
			continue
		}
		buf.WriteByte(0xFF)
		buf.WriteByte(seg.Marker)
		if seg.Data == nil && (seg.Marker == markerSOI || seg.Marker == markerEOI ||
			(seg.Marker >= 0xD0 && seg.Marker <= 0xD7)) {
			continue
		}
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(seg.Data)+2))
		buf.Write(l[:])
		buf.Write(seg.Data)
	}
	return buf.Bytes()
}

// FindExif returns the index of the first APP1 Exif segment and its TIFF
// payload (the bytes after "Exif\0\0"). Index -1 means no EXIF metadata.
func FindExif(segs []Segment) (int, []byte) {
	for i, seg := range segs {
		if seg.Marker == MarkerAPP1 && bytes.HasPrefix(seg.Data, ExifHeader) {
			return i, seg.Data[len(ExifHeader):]
		}
	}
	return -1, nil
}

// WithExif returns a copy of the segment list with the APP1 Exif payload at
// idx replaced by tiffData, or removed entirely when tiffData is nil.
func WithExif(segs []Segment, idx int, tiffData []byte) []Segment {
	out := make([]Segment, 0, len(segs))
	for i, seg := range segs {
		if i == idx {
			if tiffData == nil {
				continue
			}
			seg = Segment{Marker: MarkerAPP1, Data: append(append([]byte(nil), ExifHeader...), tiffData...)}
		}
		out = append(out, seg)
	}
	return out
}
