package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "clip.mp4", want: "mp4"},
		{in: "Shot.JPEG", want: "jpeg"},
		{in: "archive.tar.png", want: "png"},
		{in: "README", want: ""},
		{in: "trailing.", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.in))
		})
	}
}

func TestFormatTableLookup(t *testing.T) {
	table := DefaultFormatTable()

	f, ok := table.Lookup("a.JPG")
	assert.True(t, ok)
	assert.Equal(t, Format{MIMEType: "image/jpg", Kind: MediaImage}, f)

	f, ok = table.Lookup("clip.mp4")
	assert.True(t, ok)
	assert.Equal(t, MediaVideo, f.Kind)

	_, ok = table.Lookup("notes.txt")
	assert.False(t, ok)
}

func TestNewFormatTableNormalizesKeys(t *testing.T) {
	table := NewFormatTable(map[string]string{".WEBM": "video/webm"})
	assert.Equal(t, Format{MIMEType: "video/webm", Kind: MediaVideo}, table["webm"])
}

func TestAssetHandleTag(t *testing.T) {
	h := AssetHandle{AssetID: "42", MIMEType: "image/png", Kind: MediaImage}
	assert.Equal(t, `<img src="data:image/png;asset_id,42" />`, h.Tag())
}

func TestInferenceRequestAssetIDs(t *testing.T) {
	req := InferenceRequest{Assets: []AssetHandle{{AssetID: "a"}, {AssetID: "b"}}}
	assert.Equal(t, []string{"a", "b"}, req.AssetIDs())
}

func TestFormatError(t *testing.T) {
	err := fmt.Errorf("validate: %w", &FormatError{FileName: "x.gif", Extension: "gif"})

	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Equal(t, "validate: x.gif format is not supported", err.Error())
	assert.True(t, IsClientError(err))
	assert.True(t, IsClientError(ErrInvalidVideoBatch))
	assert.False(t, IsClientError(ErrAssetUploadFailed))
}

func TestFormatTableLookupExtension(t *testing.T) {
	table := DefaultFormatTable()

	f, ok := table.LookupExtension("MP4")
	assert.True(t, ok)
	assert.Equal(t, MediaVideo, f.Kind)

	_, ok = table.LookupExtension("")
	assert.False(t, ok)
}
