package blobs

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"golang.org/x/text/unicode/norm"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeName turns an uploaded file name into a flat, ASCII-only blob name: directories are
// dropped, accents folded, whitespace becomes "_" and anything else outside [A-Za-z0-9_.-] is removed.
func SanitizeName(filename string) (string, error) {
	filename = strings.ReplaceAll(filename, `\`, "/")
	filename = path.Base(filename)

	var b strings.Builder
	for _, r := range norm.NFKD.String(filename) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if name == "" {
		return "", fmt.Errorf("[blobs SanitizeName] %w: %q", apperrors.ErrInvalidBlobName, filename)
	}
	return name, nil
}

// UniqueName returns name if it is not taken, otherwise the first free "base(n).ext".
func UniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	for i := 1; ; i++ {
		if candidate := numberedName(name, i); !taken(candidate) {
			return candidate
		}
	}
}

func numberedName(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s(%d)%s", base, n, ext)
}
