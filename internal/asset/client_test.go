package asset

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/kdduha/apeiron/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNVCF struct {
	mu          sync.Mutex
	server      *httptest.Server
	authorized  []authorizeRequest
	authHeaders []string
	uploads     map[string][]byte
	uploadMeta  map[string]http.Header
	deleted     []string
	failPut     bool
	failDelete  bool
	numericIDs  bool
	next        int
}

func newFakeNVCF(t *testing.T) *fakeNVCF {
	f := &fakeNVCF{
		uploads:    map[string][]byte{},
		uploadMeta: map[string]http.Header{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assets", func(w http.ResponseWriter, r *http.Request) {
		var req authorizeRequest
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.next++
		id := f.next
		f.authorized = append(f.authorized, req)
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		numeric := f.numericIDs
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if numeric {
			_, _ = io.WriteString(w, `{"uploadUrl":"`+f.server.URL+`/upload/`+strconv.Itoa(id)+`?X-Amz-Signature=secret","assetId":`+strconv.Itoa(id)+`}`)
			return
		}
		_, _ = io.WriteString(w, `{"uploadUrl":"`+f.server.URL+`/upload/asset-`+strconv.Itoa(id)+`?X-Amz-Signature=secret","assetId":"asset-`+strconv.Itoa(id)+`"}`)
	})
	mux.HandleFunc("PUT /upload/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failPut {
			http.Error(w, "AccessDenied", http.StatusForbidden)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.uploads[r.PathValue("id")] = body
		f.uploadMeta[r.PathValue("id")] = r.Header.Clone()
	})
	mux.HandleFunc("DELETE /assets/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failDelete {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		f.deleted = append(f.deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNVCF) client() *Client {
	return NewClient(zerolog.Nop(), f.server.Client(), f.server.URL+"/assets/", "nvapi-test", models.DefaultFormatTable())
}

func TestUploadProtocol(t *testing.T) {
	f := newFakeNVCF(t)
	c := f.client()

	handle, err := c.Upload(context.Background(), []byte("PNGDATA"), "shot.PNG", "Reference media file")
	require.NoError(t, err)

	assert.Equal(t, models.AssetHandle{AssetID: "asset-1", MIMEType: "image/png", Kind: models.MediaImage}, handle)
	require.Len(t, f.authorized, 1)
	assert.Equal(t, authorizeRequest{ContentType: "image/png", Description: "Reference media file"}, f.authorized[0])
	assert.Equal(t, "Bearer nvapi-test", f.authHeaders[0])
	assert.Equal(t, []byte("PNGDATA"), f.uploads["asset-1"])
	assert.Equal(t, "image/png", f.uploadMeta["asset-1"].Get("Content-Type"))
	assert.Equal(t, "Reference media file", f.uploadMeta["asset-1"].Get(descriptionHeader))
	assert.Empty(t, f.uploadMeta["asset-1"].Get("Authorization"))
}

func TestUploadNumericAssetID(t *testing.T) {
	f := newFakeNVCF(t)
	f.numericIDs = true

	handle, err := f.client().Upload(context.Background(), []byte("v"), "clip.mp4", "Reference media file")
	require.NoError(t, err)
	assert.Equal(t, "1", handle.AssetID)
	assert.Equal(t, models.MediaVideo, handle.Kind)
	assert.Equal(t, "video/mp4", handle.MIMEType)
}

func TestUploadUnsupportedFormat(t *testing.T) {
	f := newFakeNVCF(t)

	_, err := f.client().Upload(context.Background(), []byte("x"), "notes.txt", "Reference media file")
	require.ErrorIs(t, err, models.ErrUnsupportedFormat)

	var fe *models.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "notes.txt", fe.FileName)
	assert.Equal(t, "txt", fe.Extension)
	assert.Empty(t, f.authorized)
}

func TestUploadPutFailure(t *testing.T) {
	f := newFakeNVCF(t)
	f.failPut = true

	_, err := f.client().Upload(context.Background(), []byte("x"), "a.jpg", "Reference media file")
	require.ErrorIs(t, err, models.ErrAssetUploadFailed)
	assert.Contains(t, err.Error(), "403")
	assert.NotContains(t, err.Error(), "secret")
}

func TestUploadAuthorizeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(zerolog.Nop(), srv.Client(), srv.URL, "bad", models.DefaultFormatTable())
	_, err := c.Upload(context.Background(), []byte("x"), "a.jpeg", "Reference media file")
	require.ErrorIs(t, err, models.ErrAssetUploadFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestDelete(t *testing.T) {
	f := newFakeNVCF(t)
	c := f.client()

	require.NoError(t, c.Delete(context.Background(), "asset-9"))
	assert.Equal(t, []string{"asset-9"}, f.deleted)

	f.failDelete = true
	err := c.Delete(context.Background(), "asset-10")
	require.ErrorIs(t, err, models.ErrAssetDeleteFailed)
	assert.Contains(t, err.Error(), "asset-10")
}

func TestUploadRejectsUnusableAssetID(t *testing.T) {
	for _, raw := range []string{`null`, `""`, `{}`, `[1]`, `true`} {
		t.Run(raw, func(t *testing.T) {
			var puts int
			var srv *httptest.Server
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPut {
					puts++
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"uploadUrl":"`+srv.URL+`/upload","assetId":`+raw+`}`)
			}))
			defer srv.Close()

			c := NewClient(zerolog.Nop(), srv.Client(), srv.URL+"/assets", "k", models.DefaultFormatTable())
			handle, err := c.Upload(context.Background(), []byte("x"), "a.png", "Reference media file")

			require.ErrorIs(t, err, models.ErrAssetUploadFailed)
			assert.Contains(t, err.Error(), "incomplete authorize response")
			assert.Empty(t, handle.AssetID)
			assert.Zero(t, puts)
		})
	}
}

func TestAssetIDString(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: `"asset-1"`, want: "asset-1", wantOK: true},
		{raw: `12345678901234567890`, want: "12345678901234567890", wantOK: true},
		{raw: `null`},
		{raw: `""`},
		{raw: `"  "`},
		{raw: `{"id":1}`},
		{raw: `false`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := assetIDString([]byte(tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
