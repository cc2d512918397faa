// Package png reads and writes PNG chunk framing. Image data chunks pass
// through untouched; only the eXIf chunk is ever replaced, and every
// written chunk gets its CRC recomputed.
package png

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/proxypixel/metascrub/core"
)

// Signature is the 8-byte PNG file signature.
var Signature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// ExifChunk is the chunk type carrying a bare TIFF structure.
const ExifChunk = "eXIf"

// Chunk is one PNG chunk: type plus payload. CRCs are not stored; they
// are verified on Split and recomputed on Join.
type Chunk struct {
	Type string
	Data []byte
}

// Split validates the signature and walks the length/type/payload/CRC
// framing up to and including IEND. Declared lengths running past the
// buffer and CRC mismatches are ErrTruncated.
func Split(data []byte) ([]Chunk, error) {
	if !bytes.HasPrefix(data, Signature) {
		return nil, fmt.Errorf("%w: missing PNG signature", core.ErrUnsupportedFormat)
	}

	var chunks []Chunk
	i := len(Signature)
	for i < len(data) {
		if i+8 > len(data) {
			return nil, fmt.Errorf("%w: chunk header cut short at %d", core.ErrTruncated, i)
		}
		length := int(binary.BigEndian.Uint32(data[i:]))
		typ := string(data[i+4 : i+8])
		if i+12+length > len(data) || length < 0 {
			return nil, fmt.Errorf("%w: %s chunk length %d exceeds buffer", core.ErrTruncated, typ, length)
		}
		payload := data[i+8 : i+8+length]
		crc := binary.BigEndian.Uint32(data[i+8+length:])
		if crc != chunkCRC(typ, payload) {
			return nil, fmt.Errorf("%w: %s chunk CRC mismatch", core.ErrTruncated, typ)
		}
		chunks = append(chunks, Chunk{Type: typ, Data: payload})
		i += 12 + length
		if typ == "IEND" {
			return chunks, nil
		}
	}
	return nil, fmt.Errorf("%w: no IEND chunk", core.ErrTruncated)
}

// Join reassembles a PNG byte stream with freshly computed chunk CRCs.
func Join(chunks []Chunk) []byte {
	var buf bytes.Buffer
	buf.Write(Signature)
	var b4 [4]byte
	for _, c := range chunks {
		binary.BigEndian.PutUint32(b4[:], uint32(len(c.Data)))
		buf.Write(b4[:])
		buf.WriteString(c.Type)
		buf.Write(c.Data)
		binary.BigEndian.PutUint32(b4[:], chunkCRC(c.Type, c.Data))
		buf.Write(b4[:])
	}
	return buf.Bytes()
}

// FindExif returns the index of the eXIf chunk and its TIFF payload, or -1
// when the file carries no EXIF metadata.
func FindExif(chunks []Chunk) (int, []byte) {
	for i, c := range chunks {
		if c.Type == ExifChunk {
			return i, c.Data
		}
	}
	return -1, nil
}

// WithExif returns a copy of the chunk list with the eXIf payload at idx
// replaced by tiffData, or removed entirely when tiffData is nil.
func WithExif(chunks []Chunk, idx int, tiffData []byte) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for i, c := range chunks {
		if i == idx {
			if tiffData == nil {
				continue
			}
			c = Chunk{Type: ExifChunk, Data: tiffData}
		}
		out = append(out, c)
	}
	return out
}

// chunkCRC is the PNG chunk CRC: CRC-32/IEEE over type then payload.
func chunkCRC(typ string, data []byte) uint32 {
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	return crc.Sum32()
}
