package constants

import (
	"path/filepath"
	"strings"
)

// FileClass is the coarse routing decision for an uploaded document.
type FileClass string

const (
	FileClassTabular     FileClass = "tabular"
	FileClassPDFOrImage  FileClass = "pdf_or_image"
	FileClassUnsupported FileClass = "unsupported"
)

// TabularExtensions holds the spreadsheet-like extensions routed to the
// tabular extractor.
var TabularExtensions = map[string]struct{}{
	"xlsx": {},
	"xls":  {},
	"csv":  {},
}

// ImageExtensions holds raster-image extensions routed to vision extraction.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
}

var mediaTypeByExt = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"csv":  "text/csv",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Ext returns the normalized extension of a filename.
func Ext(filename string) string {
	return NormalizeExt(filepath.Ext(filename))
}

// GuessMediaType maps a filename to a media type by extension, defaulting to
// application/octet-stream.
func GuessMediaType(filename string) string {
	if mt, ok := mediaTypeByExt[Ext(filename)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// Classify routes a document by extension and declared media type.
func Classify(filename, mediaType string) FileClass {
	ext := Ext(filename)
	if _, ok := TabularExtensions[ext]; ok {
		return FileClassTabular
	}
	switch mediaType {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
		"text/csv":
		return FileClassTabular
	}
	if IsPDF(filename, mediaType) || IsImage(filename, mediaType) {
		return FileClassPDFOrImage
	}
	return FileClassUnsupported
}

// IsPDF reports whether the document carries a PDF payload.
func IsPDF(filename, mediaType string) bool {
	return Ext(filename) == "pdf" || mediaType == "application/pdf"
}

// IsImage reports whether the document is a raster image.
func IsImage(filename, mediaType string) bool {
	if _, ok := ImageExtensions[Ext(filename)]; ok {
		return true
	}
	return strings.HasPrefix(mediaType, "image/")
}
