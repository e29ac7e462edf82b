package archive

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"dir/sub\\photo.jpg", "dirsubphoto.jpg"},
		{"tab\tnew\nline.jpg", "tabnewline.jpg"},
		{"  spaced.jpg  ", "spaced.jpg"},
		{"..hidden", "hidden"},
		{"Фото вечеринки.jpg", "Фото вечеринки.jpg"},
		{"bad\xffutf8.jpg", "badutf8.jpg"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}

func TestSanitizeName_Truncates(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := SanitizeName(long)
	assert.Equal(t, 200, utf8.RuneCountInString(got))
}

func TestEntryName_Fallbacks(t *testing.T) {
	assert.Equal(t, "a.jpg", EntryName("a.jpg", "id"))
	assert.Equal(t, "id", EntryName("///", "id"))
	assert.Equal(t, "file", EntryName("", ""))
}

func TestArchiveFileName(t *testing.T) {
	assert.Equal(t, "wedding.zip", ArchiveFileName("wedding"))
	assert.Equal(t, "wedding.zip", ArchiveFileName("wedding.zip"))
	assert.Equal(t, "download.zip", ArchiveFileName("/"))
}
