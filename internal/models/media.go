package models

import (
	"path/filepath"
	"strings"
)

type MediaKind string

const (
	MediaImage MediaKind = "img"
	MediaVideo MediaKind = "video"
)

// MediaItem is one uploaded file as received from the client.
type MediaItem struct {
	Data      []byte
	FileName  string
	Extension string
}

func NewMediaItem(fileName string, data []byte) MediaItem {
	return MediaItem{
		Data:      data,
		FileName:  fileName,
		Extension: Extension(fileName),
	}
}

// Extension returns the lower-cased text after the last dot, or "" if there is none.
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// AssetHandle references a media file staged on the asset service.
// It is owned by a single request and must be deleted exactly once.
type AssetHandle struct {
	AssetID  string
	MIMEType string
	Kind     MediaKind
}

// Tag renders the inline media reference understood by the inference endpoint.
func (a AssetHandle) Tag() string {
	return `<` + string(a.Kind) + ` src="data:` + a.MIMEType + `;asset_id,` + a.AssetID + `" />`
}

type InferenceRequest struct {
	Prompt string
	Assets []AssetHandle
	Stream bool
}

func (r InferenceRequest) AssetIDs() []string {
	ids := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		ids = append(ids, a.AssetID)
	}
	return ids
}

// InferenceResult is the upstream response body, relayed as is.
type InferenceResult struct {
	Body        []byte
	ContentType string
}

type Format struct {
	MIMEType string
	Kind     MediaKind
}

// FormatTable maps a file extension to its MIME type and media kind.
type FormatTable map[string]Format

// NewFormatTable builds a table from extension -> MIME type pairs.
// Types under video/ are classified as video, everything else as img.
func NewFormatTable(mimeByExt map[string]string) FormatTable {
	table := make(FormatTable, len(mimeByExt))
	for ext, mime := range mimeByExt {
		kind := MediaImage
		if strings.HasPrefix(mime, "video/") {
			kind = MediaVideo
		}
		table[strings.ToLower(strings.TrimPrefix(ext, "."))] = Format{MIMEType: mime, Kind: kind}
	}
	return table
}

func DefaultFormatTable() FormatTable {
	return NewFormatTable(map[string]string{
		"png":  "image/png",
		"jpg":  "image/jpg",
		"jpeg": "image/jpeg",
		"mp4":  "video/mp4",
	})
}

func (t FormatTable) Lookup(fileName string) (Format, bool) {
	return t.LookupExtension(Extension(fileName))
}

func (t FormatTable) LookupExtension(ext string) (Format, bool) {
	f, ok := t[strings.ToLower(ext)]
	return f, ok
}
