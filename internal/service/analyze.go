package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kdduha/apeiron/backend/internal/config"
	"github.com/kdduha/apeiron/backend/internal/metrics"
	"github.com/kdduha/apeiron/backend/internal/models"
	"github.com/rs/zerolog"
)

const defaultCleanupTimeout = 30 * time.Second

type assetManager interface {
	Upload(ctx context.Context, data []byte, fileName, description string) (models.AssetHandle, error)
	Delete(ctx context.Context, assetID string) error
}

type inferenceClient interface {
	Infer(ctx context.Context, req models.InferenceRequest) (*models.InferenceResult, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

type stage string

const (
	stageValidating stage = "validating"
	stageUploading  stage = "uploading"
	stageInvoking   stage = "invoking"
	stageCleaningUp stage = "cleaning_up"
	stageDone       stage = "done"
	stageFailed     stage = "failed"
)

// AnalyzeService drives one media analysis: stage the files as assets, run
// inference over them and delete every staged asset afterwards.
type AnalyzeService struct {
	logger         zerolog.Logger
	assets         assetManager
	inference      inferenceClient
	formats        models.FormatTable
	cleanupTimeout time.Duration
	cache          Cache
}

func NewAnalyzeService(logger zerolog.Logger, assets assetManager, inference inferenceClient, cfg config.NVIDIAConfig) *AnalyzeService {
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = defaultCleanupTimeout
	}
	return &AnalyzeService{
		logger:         logger.With().Str("component", "analyze").Logger(),
		assets:         assets,
		inference:      inference,
		formats:        cfg.FormatTable(),
		cleanupTimeout: cleanupTimeout,
	}
}

func (s *AnalyzeService) SetCacheClient(cache Cache) {
	s.cache = cache
}

// Analyze uploads files in order, checks that a video is never batched, calls
// the inference endpoint and returns its body unmodified. Assets created here
// are deleted before Analyze returns, whatever the outcome.
func (s *AnalyzeService) Analyze(ctx context.Context, files []models.MediaItem, query string, stream bool) (result *models.InferenceResult, err error) {
	log := s.loggerFor(ctx)
	log.Debug().Str("stage", string(stageValidating)).Int("files", len(files)).Msg("analyze")

	if len(files) == 0 {
		return nil, models.ErrNoFilesProvided
	}
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}

	hasVideo := false
	for _, f := range files {
		format, ok := s.formats.LookupExtension(f.Extension)
		if !ok {
			return nil, &models.FormatError{FileName: f.FileName, Extension: f.Extension}
		}
		if format.Kind == models.MediaVideo {
			hasVideo = true
		}
	}

	var cacheKey string
	if s.cache != nil && !stream {
		cacheKey = getCacheKey(files, query)
		cached, found, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			log.Warn().Err(err).Msg("cache get error")
		}
		if found {
			log.Debug().Msg("served from cache")
			return &models.InferenceResult{Body: []byte(cached), ContentType: "application/json"}, nil
		}
	}

	handles := make([]models.AssetHandle, 0, len(files))
	defer func() {
		log.Debug().Str("stage", string(stageCleaningUp)).Int("assets", len(handles)).Msg("analyze")
		s.cleanup(ctx, log, handles)
		if err != nil {
			log.Debug().Str("stage", string(stageFailed)).Err(err).Msg("analyze")
			return
		}
		log.Debug().Str("stage", string(stageDone)).Msg("analyze")
	}()

	log.Debug().Str("stage", string(stageUploading)).Msg("analyze")
	for _, f := range files {
		handle, err := s.assets.Upload(ctx, f.Data, f.FileName, assetDescription)
		if err != nil {
			if !errors.Is(err, models.ErrAssetUploadFailed) && !errors.Is(err, models.ErrUnsupportedFormat) {
				err = fmt.Errorf("%w: %w", models.ErrAssetUploadFailed, err)
			}
			return nil, err
		}
		handles = append(handles, handle)
	}

	// Videos are checked only after the upload pass; the staged assets are
	// removed by the deferred cleanup.
	if hasVideo && len(files) != 1 {
		return nil, models.ErrInvalidVideoBatch
	}

	req := models.InferenceRequest{
		Prompt: buildPrompt(query, handles),
		Assets: handles,
		Stream: stream,
	}

	log.Debug().Str("stage", string(stageInvoking)).Msg("analyze")
	result, err = s.inference.Infer(ctx, req)
	if err != nil {
		if !errors.Is(err, models.ErrInferenceCallFailed) {
			err = fmt.Errorf("%w: %w", models.ErrInferenceCallFailed, err)
		}
		return nil, err
	}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, string(result.Body)); err != nil {
			log.Warn().Err(err).Msg("failed to set cache")
		}
	}
	return result, nil
}

// cleanup deletes every handle once. Failures leave an orphaned asset behind
// and are only logged.
func (s *AnalyzeService) cleanup(ctx context.Context, log zerolog.Logger, handles []models.AssetHandle) {
	if len(handles) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	for _, h := range handles {
		if err := s.assets.Delete(ctx, h.AssetID); err != nil {
			metrics.OrphanedAsset()
			log.Warn().Err(err).Str("asset_id", h.AssetID).Msg("asset cleanup failed")
		}
	}
}

func (s *AnalyzeService) loggerFor(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", "analyze").Logger()
	}
	return s.logger
}

func buildPrompt(query string, handles []models.AssetHandle) string {
	var b strings.Builder
	b.WriteString(query)
	b.WriteString(" ")
	for _, h := range handles {
		b.WriteString(h.Tag())
	}
	return b.String()
}

func getCacheKey(files []models.MediaItem, query string) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, f := range files {
		h.Write([]byte{0})
		h.Write([]byte(f.FileName))
		h.Write([]byte{0})
		h.Write(f.Data)
	}
	return "analyze:" + hex.EncodeToString(h.Sum(nil))
}
