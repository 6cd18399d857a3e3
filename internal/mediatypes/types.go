package mediatypes

import "bytes"

// Format is an image container format.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatHEIF    Format = "heif"
	FormatAVIF    Format = "avif"
	FormatJXL     Format = "jxl"
	FormatUnknown Format = "unknown"
)

// SortField specifies which field to sort by.
type SortField string

// SortOrder specifies the direction of sorting.
type SortOrder string

const (
	// SortByName sorts results by original URL.
	SortByName SortField = "name"
	// SortByDate sorts results by modification time.
	SortByDate SortField = "date"
	// SortBySize sorts results by file size.
	SortBySize SortField = "size"

	// SortAsc sorts in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortOrder = "desc"
)

// ImageExtensions maps lowercase file extensions to their format.
var ImageExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".webp": FormatWebP,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,
	".tif":  FormatTIFF,
	".heic": FormatHEIF,
	".heif": FormatHEIF,
	".avif": FormatAVIF,
	".jxl":  FormatJXL,
}

var mimeTypes = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatWebP: "image/webp",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
	FormatHEIF: "image/heif",
	FormatAVIF: "image/avif",
	FormatJXL:  "image/jxl",
}

// FormatForExtension returns the format for a lowercase extension with its
// leading dot, or FormatUnknown.
func FormatForExtension(ext string) Format {
	if f, ok := ImageExtensions[ext]; ok {
		return f
	}
	return FormatUnknown
}

// IsImageFile reports whether ext is a recognised image extension.
func IsImageFile(ext string) bool {
	_, ok := ImageExtensions[ext]
	return ok
}

// MimeType returns the MIME type of f, or "application/octet-stream".
func (f Format) MimeType() string {
	if mime, ok := mimeTypes[f]; ok {
		return mime
	}
	return "application/octet-stream"
}

// Decodable reports whether the pure Go decoders registered by the
// provider can read f. Other formats need libvips.
func (f Format) Decodable() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatWebP, FormatBMP, FormatTIFF:
		return true
	}
	return false
}

var (
	magicJPEG    = []byte{0xFF, 0xD8, 0xFF}
	magicPNG     = []byte{0x89, 'P', 'N', 'G'}
	magicGIF     = []byte("GIF8")
	magicTIFFLE  = []byte{'I', 'I', 0x2A, 0x00}
	magicTIFFBE  = []byte{'M', 'M', 0x00, 0x2A}
	magicJXL     = []byte{0xFF, 0x0A}
	magicJXLCont = []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' '}
)

// DetectFormat sniffs the format from the first bytes of a file. 32 bytes
// are always enough.
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, magicJPEG):
		return FormatJPEG
	case bytes.HasPrefix(header, magicPNG):
		return FormatPNG
	case bytes.HasPrefix(header, magicGIF):
		return FormatGIF
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WEBP":
		return FormatWebP
	case bytes.HasPrefix(header, []byte("BM")):
		return FormatBMP
	case bytes.HasPrefix(header, magicTIFFLE), bytes.HasPrefix(header, magicTIFFBE):
		return FormatTIFF
	case bytes.HasPrefix(header, magicJXL), bytes.HasPrefix(header, magicJXLCont):
		return FormatJXL
	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return FormatHEIF
		case "avif", "avis":
			return FormatAVIF
		}
	}
	return FormatUnknown
}
