package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kdduha/apeiron/backend/internal/metrics"
	"github.com/kdduha/apeiron/backend/internal/models"
	"github.com/rs/zerolog"
)

const descriptionHeader = "x-amz-meta-nvcf-asset-description"

type authorizeRequest struct {
	ContentType string `json:"contentType"`
	Description string `json:"description"`
}

type authorizeResponse struct {
	UploadURL string          `json:"uploadUrl"`
	AssetID   json.RawMessage `json:"assetId"`
}

// Client stages media on the NVCF asset service.
type Client struct {
	logger     zerolog.Logger
	httpClient *http.Client
	assetsURL  string
	apiKey     string
	formats    models.FormatTable
}

func NewClient(logger zerolog.Logger, httpClient *http.Client, assetsURL, apiKey string, formats models.FormatTable) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		logger:     logger.With().Str("component", "asset").Logger(),
		httpClient: httpClient,
		assetsURL:  strings.TrimRight(assetsURL, "/"),
		apiKey:     apiKey,
		formats:    formats,
	}
}

// Upload creates a remote asset for data. The returned id is valid only after
// the bytes have been transferred to the upload URL.
func (c *Client) Upload(ctx context.Context, data []byte, fileName, description string) (handle models.AssetHandle, err error) {
	format, ok := c.formats.Lookup(fileName)
	if !ok {
		return models.AssetHandle{}, &models.FormatError{FileName: fileName, Extension: models.Extension(fileName)}
	}

	start := time.Now()
	defer func() {
		metrics.AssetOperation("upload", metrics.Status(err), time.Since(start))
	}()

	uploadURL, assetID, err := c.authorize(ctx, format.MIMEType, description)
	if err != nil {
		return models.AssetHandle{}, fmt.Errorf("%w: authorize %s: %w", models.ErrAssetUploadFailed, fileName, err)
	}

	if err := c.put(ctx, uploadURL, data, format.MIMEType, description); err != nil {
		return models.AssetHandle{}, fmt.Errorf("%w: put %s: %w", models.ErrAssetUploadFailed, fileName, err)
	}

	handle = models.AssetHandle{
		AssetID:  assetID,
		MIMEType: format.MIMEType,
		Kind:     format.Kind,
	}
	c.logger.Debug().
		Str("asset_id", handle.AssetID).
		Str("file", fileName).
		Int("bytes", len(data)).
		Msg("asset uploaded")
	return handle, nil
}

// Delete removes the asset. The service does not guarantee idempotency.
func (c *Client) Delete(ctx context.Context, assetID string) (err error) {
	start := time.Now()
	defer func() {
		metrics.AssetOperation("delete", metrics.Status(err), time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.assetsURL+"/"+assetID, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrAssetDeleteFailed, assetID, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("%w: %s: %w", models.ErrAssetDeleteFailed, assetID, err)
	}

	c.logger.Debug().Str("asset_id", assetID).Msg("asset deleted")
	return nil
}

func (c *Client) authorize(ctx context.Context, contentType, description string) (string, string, error) {
	body, err := sonic.Marshal(authorizeRequest{
		ContentType: contentType,
		Description: description,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.assetsURL, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp authorizeResponse
	if err := c.do(req, &resp); err != nil {
		return "", "", err
	}
	assetID, ok := assetIDString(resp.AssetID)
	if resp.UploadURL == "" || !ok {
		return "", "", fmt.Errorf("incomplete authorize response: assetId %s", resp.AssetID)
	}
	return resp.UploadURL, assetID, nil
}

func (c *Client) put(ctx context.Context, uploadURL string, data []byte, contentType, description string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(descriptionHeader, description)

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// presigned upload urls carry credentials in the query
		return fmt.Errorf("%s %s%s: bad status %d: %s",
			req.Method,
			req.URL.Host,
			req.URL.Path,
			resp.StatusCode,
			strings.TrimSpace(string(b)),
		)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return sonic.ConfigDefault.NewDecoder(resp.Body).Decode(out)
}

// assetIDString accepts a non-empty string or a number. null, objects and
// other values are rejected.
func assetIDString(raw json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var id string
		if err := sonic.UnmarshalString(trimmed, &id); err != nil {
			return "", false
		}
		return id, strings.TrimSpace(id) != ""
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		return "", false
	}
	return trimmed, true
}
