package archive

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameRunes = 200

// SanitizeName strips path separators and control characters and truncates
// to 200 characters. Guest-supplied names are not unique; callers must
// tolerate collisions.
func SanitizeName(name string) string {
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "")
	}

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, ".")

	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}

// EntryName is the sanitized display name, or the sanitized fallback when
// nothing usable remains.
func EntryName(display, fallback string) string {
	if n := SanitizeName(display); n != "" {
		return n
	}
	if n := SanitizeName(fallback); n != "" {
		return n
	}
	return "file"
}

// ArchiveFileName turns a requested archive name into "<name>.zip".
func ArchiveFileName(requested string) string {
	n := strings.TrimSuffix(SanitizeName(requested), ".zip")
	if n == "" {
		n = "download"
	}
	return n + ".zip"
}
