package core

import (
	"bytes"
	"fmt"
)

// Container enumerates every container kind the sniffer can name.
type Container string

const (
	JPEG Container = "jpeg"
	PNG  Container = "png"
	TIFF Container = "tiff"

	// Recognised but not processed. Naming them lets the batch report say
	// "skipped (webp)" instead of a bare unsupported error.
	GIF  Container = "gif"
	WebP Container = "webp"
	BMP  Container = "bmp"
	HEIC Container = "heic"

	Unknown Container = "unknown"
)

// sniffLen is the fixed prefix the sniffer inspects. No magic sequence we
// match needs more.
const sniffLen = 16

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// DetectContainer identifies the container kind from the leading bytes of
// buf. It returns one of JPEG, PNG, or TIFF for processable containers, or
// ErrUnsupportedFormat (with the recognised kind, when there is one) for
// everything else.
func DetectContainer(buf []byte) (Container, error) {
	b := buf
	if len(b) > sniffLen {
		b = b[:sniffLen]
	}
	if len(b) < 4 {
		return Unknown, fmt.Errorf("%w: file shorter than any known signature", ErrUnsupportedFormat)
	}

	switch {
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return JPEG, nil
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, pngSignature):
		return PNG, nil
	// TIFF: 49 49 2A 00 (little-endian) or 4D 4D 00 2A (big-endian)
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return TIFF, nil
	// GIF: GIF87a or GIF89a
	case bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a")):
		return GIF, fmt.Errorf("%w: gif", ErrUnsupportedFormat)
	// WebP: RIFF????WEBP
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return WebP, fmt.Errorf("%w: webp", ErrUnsupportedFormat)
	// BMP: 42 4D
	case b[0] == 0x42 && b[1] == 0x4D:
		return BMP, fmt.Errorf("%w: bmp", ErrUnsupportedFormat)
	// HEIC/HEIF: ISOBMFF ftyp box
	case len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")):
		return HEIC, fmt.Errorf("%w: heic", ErrUnsupportedFormat)
	}
	return Unknown, ErrUnsupportedFormat
}
