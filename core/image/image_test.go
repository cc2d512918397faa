package image

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/require"

	"github.com/proxypixel/metascrub/core"
	"github.com/proxypixel/metascrub/core/jpeg"
	"github.com/proxypixel/metascrub/core/plan"
	"github.com/proxypixel/metascrub/core/png"
	"github.com/proxypixel/metascrub/core/tiff"
)

var order = binary.LittleEndian

func ascii(tag uint16, s string) *tiff.Entry {
	v := append([]byte(s), 0)
	return tiff.NewEntry(tag, tiff.DTAscii, uint32(len(v)), v, order)
}

func short(tag uint16, v uint16) *tiff.Entry {
	b := make([]byte, 2)
	order.PutUint16(b, v)
	return tiff.NewEntry(tag, tiff.DTShort, 1, b, order)
}

func rats(tag uint16, pairs ...[2]uint32) *tiff.Entry {
	b := make([]byte, 8*len(pairs))
	for i, p := range pairs {
		order.PutUint32(b[i*8:], p[0])
		order.PutUint32(b[i*8+4:], p[1])
	}
	return tiff.NewEntry(tag, tiff.DTRational, uint32(len(pairs)), b, order)
}

func pointer(tag uint16) *tiff.Entry {
	return tiff.NewEntry(tag, tiff.DTLong, 1, make([]byte, 4), order)
}

// testTree carries device tags in the primary IFD and a GPS position.
func testTree() *tiff.Tree {
	gps := &tiff.IFD{Space: tiff.GPSSpace, Sub: map[uint16]*tiff.IFD{}}
	gps.Entries = []*tiff.Entry{
		ascii(0x0001, "N"),
		rats(0x0002, [2]uint32{37, 1}, [2]uint32{46, 1}, [2]uint32{12, 1}),
		ascii(0x0003, "W"),
		rats(0x0004, [2]uint32{122, 1}, [2]uint32{25, 1}, [2]uint32{0, 1}),
	}
	root := &tiff.IFD{Space: tiff.PrimarySpace, Sub: map[uint16]*tiff.IFD{}}
	root.Entries = []*tiff.Entry{
		ascii(0x010F, "GoCam"),
		ascii(0x0110, "X100"),
		short(0x0100, 640), // ImageWidth, structural
		pointer(tiff.TagGPSIFD),
	}
	root.Sub[tiff.TagGPSIFD] = gps
	return &tiff.Tree{Order: order, Root: root}
}

func makeJPEG(t *testing.T, tiffPayload []byte) []byte {
	t.Helper()
	app1 := append(append([]byte(nil), jpeg.ExifHeader...), tiffPayload...)
	return jpeg.Join([]jpeg.Segment{
		{Marker: 0xD8},
		{Marker: jpeg.MarkerAPP1, Data: app1},
		{Marker: 0xDA, Data: []byte{0x01, 0x00}},
		{Raw: true, Data: []byte{0xCA, 0xFE, 0xBA, 0xBE, 0xFF, 0xD9}},
	})
}

func makePNG(t *testing.T, tiffPayload []byte) []byte {
	t.Helper()
	chunks := []png.Chunk{{Type: "IHDR", Data: make([]byte, 13)}}
	if tiffPayload != nil {
		chunks = append(chunks, png.Chunk{Type: png.ExifChunk, Data: tiffPayload})
	}
	return png.Join(append(chunks,
		png.Chunk{Type: "IDAT", Data: []byte{0x78, 0x9C, 0x01}},
		png.Chunk{Type: "IEND"},
	))
}

func serialized(t *testing.T, tree *tiff.Tree) []byte {
	t.Helper()
	out, err := tiff.Serialize(tree)
	require.NoError(t, err)
	return out
}

func rawScan(t *testing.T, data []byte) []byte {
	t.Helper()
	segs, err := jpeg.Split(data)
	require.NoError(t, err)
	for _, s := range segs {
		if s.Raw {
			return s.Data
		}
	}
	t.Fatal("no scan data segment")
	return nil
}

func TestScrubJPEGStripLocation(t *testing.T) {
	data := makeJPEG(t, serialized(t, testTree()))
	p := &plan.Plan{Rules: []plan.Rule{{Category: "location", Action: plan.Delete}}}

	res, err := Scrub(data, p, core.Options{})
	require.NoError(t, err)
	require.True(t, res.Report.Changed)
	require.Equal(t, core.JPEG, res.Report.Container)
	require.Equal(t, 5, res.Report.Deleted()) // GPS pointer + four GPS tags
	require.NotNil(t, res.Output)

	// pixel data passes through byte-identical
	require.Equal(t, rawScan(t, data), rawScan(t, res.Output))

	x, err := exif.Decode(bytes.NewReader(res.Output))
	require.NoError(t, err)
	modelTag, err := x.Get(exif.Model)
	require.NoError(t, err)
	model, err := modelTag.StringVal()
	require.NoError(t, err)
	require.Equal(t, "X100", model)
	_, _, err = x.LatLong()
	require.Error(t, err)
}

func TestScrubJPEGStripAllDropsSegment(t *testing.T) {
	data := makeJPEG(t, serialized(t, testTree()))

	res, err := Scrub(data, plan.StripAllPlan(), core.Options{})
	require.NoError(t, err)
	require.True(t, res.Report.Changed)
	require.NotNil(t, res.Output)

	segs, err := jpeg.Split(res.Output)
	require.NoError(t, err)
	idx, _ := jpeg.FindExif(segs)
	require.Equal(t, -1, idx)
	require.Equal(t, rawScan(t, data), rawScan(t, res.Output))
}

func TestScrubJPEGKeepEmptyShell(t *testing.T) {
	data := makeJPEG(t, serialized(t, testTree()))

	res, err := Scrub(data, plan.StripAllPlan(), core.Options{KeepEmptyShell: true})
	require.NoError(t, err)
	require.NotNil(t, res.Output)

	segs, err := jpeg.Split(res.Output)
	require.NoError(t, err)
	_, payload := jpeg.FindExif(segs)
	require.NotNil(t, payload)

	tree, err := tiff.Parse(payload)
	require.NoError(t, err)
	require.True(t, tree.Empty())
}

func TestScrubJPEGWithoutMetadata(t *testing.T) {
	data := jpeg.Join([]jpeg.Segment{
		{Marker: 0xD8},
		{Marker: 0xDA, Data: []byte{0x01, 0x00}},
		{Raw: true, Data: []byte{0xFF, 0xD9}},
	})

	res, err := Scrub(data, plan.StripAllPlan(), core.Options{})
	require.NoError(t, err)
	require.True(t, res.Report.NoMetadata)
	require.False(t, res.Report.Changed)
	require.Nil(t, res.Output)
}

func TestScrubIdempotent(t *testing.T) {
	data := makeJPEG(t, serialized(t, testTree()))
	p := &plan.Plan{Rules: []plan.Rule{{Category: "location", Action: plan.Delete}}}

	res, err := Scrub(data, p, core.Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Output)

	again, err := Scrub(res.Output, p, core.Options{})
	require.NoError(t, err)
	require.False(t, again.Report.Changed)
	require.Nil(t, again.Output)
}

func TestScrubPNG(t *testing.T) {
	data := makePNG(t, serialized(t, testTree()))

	res, err := Scrub(data, plan.StripAllPlan(), core.Options{})
	require.NoError(t, err)
	require.True(t, res.Report.Changed)
	require.Equal(t, core.PNG, res.Report.Container)

	chunks, err := png.Split(res.Output)
	require.NoError(t, err)
	idx, _ := png.FindExif(chunks)
	require.Equal(t, -1, idx)

	// IDAT survives untouched
	var idat []byte
	for _, c := range chunks {
		if c.Type == "IDAT" {
			idat = c.Data
		}
	}
	require.Equal(t, []byte{0x78, 0x9C, 0x01}, idat)
}

func TestScrubPNGWithoutMetadata(t *testing.T) {
	data := makePNG(t, nil)

	res, err := Scrub(data, plan.StripAllPlan(), core.Options{})
	require.NoError(t, err)
	require.True(t, res.Report.NoMetadata)
	require.Nil(t, res.Output)
}

func TestScrubTIFFKeepsStructuralTags(t *testing.T) {
	data := serialized(t, testTree())

	res, err := Scrub(data, plan.StripAllPlan(), core.Options{})
	require.NoError(t, err)
	require.True(t, res.Report.Changed)
	require.Equal(t, core.TIFF, res.Report.Container)

	tree, err := tiff.Parse(res.Output)
	require.NoError(t, err)
	require.NotNil(t, tree.Root.Find(0x0100)) // ImageWidth survives
	require.Nil(t, tree.Root.Find(0x010F))    // Make does not
	require.Nil(t, tree.Root.Sub[tiff.TagGPSIFD])
}

func TestScrubUnsupportedFormat(t *testing.T) {
	_, err := Scrub([]byte("GIF89a......"), plan.StripAllPlan(), core.Options{})
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestScrubCorruptMetadataLeavesFileUntouched(t *testing.T) {
	// one ASCII entry whose value offset points far past the segment
	payload := []byte{
		'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00,
		0x01, 0x00,
		0x0F, 0x01, 0x02, 0x00, 0x64, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	data := makeJPEG(t, payload)

	_, err := Scrub(data, plan.StripAllPlan(), core.Options{})
	require.Error(t, err)
	require.ErrorIs(t, err, tiff.ErrOffsetOutOfBounds)
}

func TestInspectJPEG(t *testing.T) {
	data := makeJPEG(t, serialized(t, testTree()))

	tree, kind, warnings, err := Inspect(data)
	require.NoError(t, err)
	require.Equal(t, core.JPEG, kind)
	require.Empty(t, warnings)
	require.Equal(t, "GoCam", tree.Root.Find(0x010F).Ascii())

	coords, ok := tiff.DecimalCoords(tree)
	require.True(t, ok)
	require.InDelta(t, 37.77, coords.Lat, 0.01)
}

func TestInspectNoMetadata(t *testing.T) {
	data := makePNG(t, nil)

	_, kind, _, err := Inspect(data)
	require.ErrorIs(t, err, core.ErrNoMetadata)
	require.Equal(t, core.PNG, kind)
}

func TestInspectPartialTreeWithWarnings(t *testing.T) {
	payload := []byte{
		'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00,
		0x02, 0x00,
		// Make with an out-of-bounds value offset, dropped with a warning
		0x0F, 0x01, 0x02, 0x00, 0x64, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00,
		// Orientation, inline, survives
		0x12, 0x01, 0x03, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	data := makeJPEG(t, payload)

	tree, kind, warnings, err := Inspect(data)
	require.NoError(t, err)
	require.Equal(t, core.JPEG, kind)
	require.NotEmpty(t, warnings)
	require.NotNil(t, tree.Root.Find(0x0112))
	require.Nil(t, tree.Root.Find(0x010F))
}
