package utils

import (
	"path/filepath"
	"strings"
)

// imageExtensions are the formats the processing layer can decode.
var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"webp": true,
}

// GetFileExtension returns the lowercased file extension without the dot.
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// IsImageFile reports whether the filename carries a decodable image
// extension.
func IsImageFile(filename string) bool {
	return imageExtensions[GetFileExtension(filename)]
}

// SanitizeFilename replaces path separators and other characters unsafe in
// filenames with underscores, so uploaded names cannot escape the upload
// directory.
func SanitizeFilename(filename string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, filename)

	return strings.Trim(result, " .")
}
