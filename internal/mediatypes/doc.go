// Package mediatypes classifies image files by extension and by content.
//
// It has no dependencies so any package can import it:
//
//	ext := strings.ToLower(filepath.Ext(name))
//	if mediatypes.IsImageFile(ext) {
//	    format := mediatypes.FormatForExtension(ext)
//	    w.Header().Set("Content-Type", format.MimeType())
//	}
//
// Extensions lie, so the provider sniffs the first bytes of each file with
// DetectFormat before choosing a decoder. Formats for which Decodable is
// false (HEIF, AVIF, JPEG XL) can only be read through libvips.
package mediatypes
