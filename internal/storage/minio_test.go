package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewObjectFilenameIsUniquePerUpload(t *testing.T) {
	a := NewObjectFilename("image/jpeg")
	b := NewObjectFilename("image/jpeg")

	// two uploads of the same client filename must never collide
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.True(t, strings.HasSuffix(b, ".jpg"))
}

func TestNewObjectFilenameUsesContentTypeExtension(t *testing.T) {
	assert.True(t, strings.HasSuffix(NewObjectFilename("image/png"), ".png"))
	assert.True(t, strings.HasSuffix(NewObjectFilename("application/pdf"), ".pdf"))
	assert.True(t, strings.HasSuffix(NewObjectFilename("video/mp4"), ".bin"))
}

func TestGetFileExtension(t *testing.T) {
	assert.Equal(t, ".jpg", GetFileExtension("image/jpeg"))
	assert.Equal(t, ".webp", GetFileExtension("image/webp"))
	assert.Equal(t, ".bin", GetFileExtension("text/plain"))
}
