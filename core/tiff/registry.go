package tiff

import "fmt"

// Category classifies a tag for selective-removal policies ("strip all
// location data"). Structural tags describe the pixel layout of a bare
// TIFF; deleting them would destroy the image, so strip-all keeps them when
// the container is a standalone TIFF.
type Category string

const (
	CatLocation    Category = "location"
	CatDevice      Category = "device"
	CatTimestamp   Category = "timestamp"
	CatSoftware    Category = "software"
	CatDescription Category = "description"
	CatStructural  Category = "structural"
	CatOther       Category = "other"
	CatUnknown     Category = "unknown"
)

// TagInfo is the registry record for one tag ID within one namespace.
type TagInfo struct {
	Name     string
	Type     DataType // semantically expected type; advisory only
	Category Category
}

// The registry is process-wide, read-only after init, and safe for
// unsynchronized concurrent reads from batch workers. Lookup never fails:
// unknown IDs get a generic descriptor so the registry can't gate parsing.

var tiffTags = map[uint16]TagInfo{
	0x0100: {"ImageWidth", DTLong, CatStructural},
	0x0101: {"ImageLength", DTLong, CatStructural},
	0x0102: {"BitsPerSample", DTShort, CatStructural},
	0x0103: {"Compression", DTShort, CatStructural},
	0x0106: {"PhotometricInterpretation", DTShort, CatStructural},
	0x010D: {"DocumentName", DTAscii, CatDescription},
	0x010E: {"ImageDescription", DTAscii, CatDescription},
	0x010F: {"Make", DTAscii, CatDevice},
	0x0110: {"Model", DTAscii, CatDevice},
	0x0111: {"StripOffsets", DTLong, CatStructural},
	0x0112: {"Orientation", DTShort, CatStructural},
	0x0115: {"SamplesPerPixel", DTShort, CatStructural},
	0x0116: {"RowsPerStrip", DTLong, CatStructural},
	0x0117: {"StripByteCounts", DTLong, CatStructural},
	0x011A: {"XResolution", DTRational, CatStructural},
	0x011B: {"YResolution", DTRational, CatStructural},
	0x011C: {"PlanarConfiguration", DTShort, CatStructural},
	0x0128: {"ResolutionUnit", DTShort, CatStructural},
	0x0131: {"Software", DTAscii, CatSoftware},
	0x0132: {"DateTime", DTAscii, CatTimestamp},
	0x013B: {"Artist", DTAscii, CatDescription},
	0x013C: {"HostComputer", DTAscii, CatDevice},
	0x0142: {"TileWidth", DTLong, CatStructural},
	0x0143: {"TileLength", DTLong, CatStructural},
	0x0144: {"TileOffsets", DTLong, CatStructural},
	0x0145: {"TileByteCounts", DTLong, CatStructural},
	0x0201: {"JPEGInterchangeFormat", DTLong, CatStructural},
	0x0202: {"JPEGInterchangeFormatLength", DTLong, CatStructural},
	0x0211: {"YCbCrCoefficients", DTRational, CatStructural},
	0x0212: {"YCbCrSubSampling", DTShort, CatStructural},
	0x0213: {"YCbCrPositioning", DTShort, CatStructural},
	0x0214: {"ReferenceBlackWhite", DTRational, CatStructural},
	0x8298: {"Copyright", DTAscii, CatDescription},
	0x8769: {"ExifIFDPointer", DTLong, CatOther},
	0x8825: {"GPSIFDPointer", DTLong, CatLocation},
}

var exifTags = map[uint16]TagInfo{
	0x829A: {"ExposureTime", DTRational, CatOther},
	0x829D: {"FNumber", DTRational, CatOther},
	0x8822: {"ExposureProgram", DTShort, CatOther},
	0x8827: {"ISOSpeedRatings", DTShort, CatOther},
	0x9000: {"ExifVersion", DTUndefined, CatOther},
	0x9003: {"DateTimeOriginal", DTAscii, CatTimestamp},
	0x9004: {"DateTimeDigitized", DTAscii, CatTimestamp},
	0x9101: {"ComponentsConfiguration", DTUndefined, CatStructural},
	0x9102: {"CompressedBitsPerPixel", DTRational, CatStructural},
	0x9201: {"ShutterSpeedValue", DTSRational, CatOther},
	0x9202: {"ApertureValue", DTRational, CatOther},
	0x9203: {"BrightnessValue", DTSRational, CatOther},
	0x9204: {"ExposureBiasValue", DTSRational, CatOther},
	0x9205: {"MaxApertureValue", DTRational, CatOther},
	0x9206: {"SubjectDistance", DTRational, CatOther},
	0x9207: {"MeteringMode", DTShort, CatOther},
	0x9208: {"LightSource", DTShort, CatOther},
	0x9209: {"Flash", DTShort, CatOther},
	0x920A: {"FocalLength", DTRational, CatOther},
	0x927C: {"MakerNote", DTUndefined, CatDevice},
	0x9286: {"UserComment", DTUndefined, CatDescription},
	0x9290: {"SubSecTime", DTAscii, CatTimestamp},
	0x9291: {"SubSecTimeOriginal", DTAscii, CatTimestamp},
	0x9292: {"SubSecTimeDigitized", DTAscii, CatTimestamp},
	0xA000: {"FlashpixVersion", DTUndefined, CatOther},
	0xA001: {"ColorSpace", DTShort, CatStructural},
	0xA002: {"PixelXDimension", DTLong, CatStructural},
	0xA003: {"PixelYDimension", DTLong, CatStructural},
	0xA005: {"InteroperabilityIFDPointer", DTLong, CatOther},
	0xA20E: {"FocalPlaneXResolution", DTRational, CatOther},
	0xA20F: {"FocalPlaneYResolution", DTRational, CatOther},
	0xA210: {"FocalPlaneResolutionUnit", DTShort, CatOther},
	0xA217: {"SensingMethod", DTShort, CatDevice},
	0xA300: {"FileSource", DTUndefined, CatOther},
	0xA301: {"SceneType", DTUndefined, CatOther},
	0xA401: {"CustomRendered", DTShort, CatOther},
	0xA402: {"ExposureMode", DTShort, CatOther},
	0xA403: {"WhiteBalance", DTShort, CatOther},
	0xA404: {"DigitalZoomRatio", DTRational, CatOther},
	0xA405: {"FocalLengthIn35mmFilm", DTShort, CatOther},
	0xA406: {"SceneCaptureType", DTShort, CatOther},
	0xA420: {"ImageUniqueID", DTAscii, CatDevice},
	0xA430: {"CameraOwnerName", DTAscii, CatDevice},
	0xA431: {"BodySerialNumber", DTAscii, CatDevice},
	0xA432: {"LensSpecification", DTRational, CatDevice},
	0xA433: {"LensMake", DTAscii, CatDevice},
	0xA434: {"LensModel", DTAscii, CatDevice},
	0xA435: {"LensSerialNumber", DTAscii, CatDevice},
}

// The GPS namespace reuses low tag IDs; everything in it is location data.
var gpsTags = map[uint16]TagInfo{
	0x0000: {"GPSVersionID", DTByte, CatLocation},
	0x0001: {"GPSLatitudeRef", DTAscii, CatLocation},
	0x0002: {"GPSLatitude", DTRational, CatLocation},
	0x0003: {"GPSLongitudeRef", DTAscii, CatLocation},
	0x0004: {"GPSLongitude", DTRational, CatLocation},
	0x0005: {"GPSAltitudeRef", DTByte, CatLocation},
	0x0006: {"GPSAltitude", DTRational, CatLocation},
	0x0007: {"GPSTimeStamp", DTRational, CatLocation},
	0x0008: {"GPSSatellites", DTAscii, CatLocation},
	0x0009: {"GPSStatus", DTAscii, CatLocation},
	0x000A: {"GPSMeasureMode", DTAscii, CatLocation},
	0x000B: {"GPSDOP", DTRational, CatLocation},
	0x000C: {"GPSSpeedRef", DTAscii, CatLocation},
	0x000D: {"GPSSpeed", DTRational, CatLocation},
	0x000E: {"GPSTrackRef", DTAscii, CatLocation},
	0x000F: {"GPSTrack", DTRational, CatLocation},
	0x0010: {"GPSImgDirectionRef", DTAscii, CatLocation},
	0x0011: {"GPSImgDirection", DTRational, CatLocation},
	0x0012: {"GPSMapDatum", DTAscii, CatLocation},
	0x0013: {"GPSDestLatitudeRef", DTAscii, CatLocation},
	0x0014: {"GPSDestLatitude", DTRational, CatLocation},
	0x0015: {"GPSDestLongitudeRef", DTAscii, CatLocation},
	0x0016: {"GPSDestLongitude", DTRational, CatLocation},
	0x001D: {"GPSDateStamp", DTAscii, CatLocation},
	0x001F: {"GPSHPositioningError", DTRational, CatLocation},
}

var interopTags = map[uint16]TagInfo{
	0x0001: {"InteroperabilityIndex", DTAscii, CatOther},
	0x0002: {"InteroperabilityVersion", DTUndefined, CatOther},
	0x1001: {"RelatedImageWidth", DTLong, CatStructural},
	0x1002: {"RelatedImageLength", DTLong, CatStructural},
}

// Lookup returns the registry record for tag within the given namespace.
// Unknown IDs return a generic descriptor, never an error.
func Lookup(space Space, tag uint16) TagInfo {
	var info TagInfo
	var ok bool
	switch space {
	case GPSSpace:
		info, ok = gpsTags[tag]
	case InteropSpace:
		info, ok = interopTags[tag]
	case ExifSpace:
		if info, ok = exifTags[tag]; !ok {
			info, ok = tiffTags[tag]
		}
	default:
		if info, ok = tiffTags[tag]; !ok {
			info, ok = exifTags[tag]
		}
	}
	if !ok {
		return TagInfo{
			Name:     fmt.Sprintf("Unknown(0x%04X)", tag),
			Category: CatUnknown,
		}
	}
	return info
}

// TagByName resolves a registry name ("Model", "GPSLatitude") back to its
// tag ID and namespace. The bool result is false for names the registry
// does not know.
func TagByName(name string) (Space, uint16, bool) {
	for id, info := range tiffTags {
		if info.Name == name {
			return PrimarySpace, id, true
		}
	}
	for id, info := range exifTags {
		if info.Name == name {
			return ExifSpace, id, true
		}
	}
	for id, info := range gpsTags {
		if info.Name == name {
			return GPSSpace, id, true
		}
	}
	for id, info := range interopTags {
		if info.Name == name {
			return InteropSpace, id, true
		}
	}
	return PrimarySpace, 0, false
}
