package blobs

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

var officeExtensions = map[string]bool{
	".doc": true, ".docx": true,
	".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".odt": true, ".ods": true, ".odp": true,
}

// IsOfficeDocument reports whether name should be opened in the Office web viewer.
func IsOfficeDocument(name string) bool {
	return officeExtensions[strings.ToLower(path.Ext(name))]
}

// DetectContentType resolves the MIME type of name from its extension, sniffing head when the extension is unknown.
func DetectContentType(name string, head []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	if len(head) > 0 {
		return mimetype.Detect(head).String()
	}
	return defaultContentType
}

// IsInlineSafe reports whether a browser can be allowed to render contentType from our origin.
// Markup and scriptable formats (html, svg, xml) are excluded.
func IsInlineSafe(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case mediaType == "application/pdf", mediaType == "text/plain":
		return true
	case mediaType == "image/svg+xml":
		return false
	case strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "video/"):
		return true
	default:
		return false
	}
}
