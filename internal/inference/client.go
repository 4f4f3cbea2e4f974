package inference

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kdduha/apeiron/backend/internal/config"
	"github.com/kdduha/apeiron/backend/internal/metrics"
	"github.com/kdduha/apeiron/backend/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

const (
	HeaderInputAssetReferences = "NVCF-INPUT-ASSET-REFERENCES"
	HeaderFunctionAssetIDs     = "NVCF-FUNCTION-ASSET-IDS"
)

type payload struct {
	MaxTokens             int                                      `json:"max_tokens"`
	Temperature           float64                                  `json:"temperature"`
	TopP                  float64                                  `json:"top_p"`
	Seed                  int                                      `json:"seed"`
	NumFramesPerInference int                                      `json:"num_frames_per_inference"`
	Messages              []openai.ChatCompletionMessageParamUnion `json:"messages"`
	Stream                bool                                     `json:"stream"`
	Model                 string                                   `json:"model"`
}

func (p payload) MarshalJSON() ([]byte, error) {
	type plain payload
	return sonic.Marshal(plain(p))
}

// Client calls the VILA endpoint through the openai REST transport. The
// endpoint is not chat-completions compatible, so requests are sent raw and
// the response body is returned untouched.
type Client struct {
	logger     zerolog.Logger
	client     openai.Client
	path       string
	model      string
	generation config.GenerationConfig
}

func NewClient(logger zerolog.Logger, httpClient *http.Client, cfg config.NVIDIAConfig) *Client {
	base, path := splitEndpoint(cfg.InferenceURL)

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		logger:     logger.With().Str("component", "inference").Logger(),
		client:     openai.NewClient(opts...),
		path:       path,
		model:      cfg.Model,
		generation: cfg.Generation,
	}
}

func (c *Client) Infer(ctx context.Context, req models.InferenceRequest) (*models.InferenceResult, error) {
	ids := strings.Join(req.AssetIDs(), ",")
	body := payload{
		MaxTokens:             c.generation.MaxTokens,
		Temperature:           c.generation.Temperature,
		TopP:                  c.generation.TopP,
		Seed:                  c.generation.Seed,
		NumFramesPerInference: c.generation.FramesPerInference,
		Messages:              []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Stream:                req.Stream,
		Model:                 c.model,
	}

	var (
		raw      []byte
		httpResp *http.Response
		start    = time.Now()
	)
	err := c.client.Post(ctx, c.path, body, &raw,
		option.WithHeader("Accept", "application/json"),
		option.WithHeader(HeaderInputAssetReferences, ids),
		option.WithHeader(HeaderFunctionAssetIDs, ids),
		option.WithResponseInto(&httpResp),
	)
	metrics.InferenceDuration(metrics.Status(err), mediaKind(req.Assets), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInferenceCallFailed, err)
	}

	contentType := "application/json"
	if httpResp != nil && httpResp.Header.Get("Content-Type") != "" {
		contentType = httpResp.Header.Get("Content-Type")
	}

	c.logger.Debug().
		Str("asset_ids", ids).
		Int("bytes", len(raw)).
		Dur("took", time.Since(start)).
		Msg("inference completed")

	return &models.InferenceResult{Body: raw, ContentType: contentType}, nil
}

func mediaKind(assets []models.AssetHandle) string {
	for _, a := range assets {
		if a.Kind == models.MediaVideo {
			return string(models.MediaVideo)
		}
	}
	return string(models.MediaImage)
}

// splitEndpoint turns https://host/v1/vlm/nvidia/vila into a base url ending
// with a slash and the final path segment.
func splitEndpoint(endpoint string) (string, string) {
	endpoint = strings.TrimRight(endpoint, "/")
	i := strings.LastIndex(endpoint, "/")
	if i < 0 || i < strings.Index(endpoint, "://")+3 {
		return endpoint + "/", ""
	}
	return endpoint[:i+1], endpoint[i+1:]
}
