package tiff

// GPS coordinate decoding for display. The tree always keeps the exact
// rational triplets; decimal degrees are derived on demand for the inspect
// output and never written back.

const (
	tagGPSLatitudeRef  uint16 = 0x0001
	tagGPSLatitude     uint16 = 0x0002
	tagGPSLongitudeRef uint16 = 0x0003
	tagGPSLongitude    uint16 = 0x0004
)

// Coords is a decoded GPS position in decimal degrees.
type Coords struct {
	Lat, Lon float64
}

// DecimalCoords decodes the latitude/longitude of the tree's GPS IFD into
// decimal degrees. The bool result is false when the tree has no GPS IFD,
// the coordinate tags are missing or malformed, a value is out of range,
// or the position is the 0,0 "null island" placeholder some devices write.
func DecimalCoords(t *Tree) (Coords, bool) {
	if t == nil || t.Root == nil {
		return Coords{}, false
	}
	gps := t.Root.Sub[TagGPSIFD]
	if gps == nil {
		return Coords{}, false
	}

	lat, ok := dmsToDecimal(gps.Find(tagGPSLatitude), gps.Find(tagGPSLatitudeRef), "S")
	if !ok || lat < -90 || lat > 90 {
		return Coords{}, false
	}
	lon, ok := dmsToDecimal(gps.Find(tagGPSLongitude), gps.Find(tagGPSLongitudeRef), "W")
	if !ok || lon < -180 || lon > 180 {
		return Coords{}, false
	}
	if lat == 0 && lon == 0 {
		return Coords{}, false
	}
	return Coords{Lat: lat, Lon: lon}, true
}

// dmsToDecimal converts a degrees/minutes/seconds rational triplet plus its
// hemisphere reference into decimal degrees. negRef is the hemisphere
// letter that flips the sign.
func dmsToDecimal(dms, ref *Entry, negRef string) (float64, bool) {
	if dms == nil || dms.Type != DTRational || dms.Count < 3 {
		return 0, false
	}
	d := dms.Rat(0)
	m := dms.Rat(1)
	s := dms.Rat(2)
	if d.Den == 0 || m.Den == 0 || s.Den == 0 {
		return 0, false
	}
	dec := d.Float() + m.Float()/60 + s.Float()/3600

	if ref != nil && ref.Type == DTAscii && ref.Ascii() == negRef {
		dec = -dec
	}
	return dec, true
}
