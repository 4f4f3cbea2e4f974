package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/kdduha/apeiron/backend/internal/models"
	"github.com/rs/zerolog"
)

const (
	filesField  = "files"
	queryField  = "query"
	streamField = "stream"
)

type analyzeService interface {
	Analyze(ctx context.Context, files []models.MediaItem, query string, stream bool) (*models.InferenceResult, error)
}

type AnalyzeHandler struct {
	service        analyzeService
	maxUploadBytes int64
}

func NewAnalyzeHandler(service analyzeService, maxUploadBytes int64) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Analyze godoc
// @Summary Analyze media
// @Description Stage the uploaded media as NVCF assets, run VILA inference over them and relay the raw response.
// @Description A video must be sent alone. Supported extensions: png, jpg, jpeg, mp4.
// @Tags analyze
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Media files"
// @Param query formData string false "Question about the media" default(Describe the scene)
// @Param stream formData boolean false "Ask the inference endpoint to stream" default(false)
// @Success 200 {object} object "Raw inference response"
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/analyze-media [post]
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	stream := false
	if v := r.FormValue(streamField); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid stream flag", err)
			return
		}
		stream = parsed
	}

	files, err := readFiles(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}

	resp, err := h.service.Analyze(r.Context(), files, r.FormValue(queryField), stream)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("analyze-media failed")
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

func readFiles(form *multipart.Form) ([]models.MediaItem, error) {
	if form == nil {
		return nil, nil
	}

	headers := form.File[filesField]
	files := make([]models.MediaItem, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, models.NewMediaItem(fh.Filename, data))
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var fe *models.FormatError
	switch {
	case errors.Is(err, models.ErrNoFilesProvided):
		writeError(w, http.StatusBadRequest, "No files provided", nil)
	case errors.As(err, &fe):
		writeError(w, http.StatusBadRequest, fe.Error(), nil)
	case errors.Is(err, models.ErrInvalidVideoBatch):
		writeError(w, http.StatusBadRequest, "Only a single video is supported.", nil)
	case models.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Bad request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err)
	}
}

func writeError(w http.ResponseWriter, status int, summary string, err error) {
	body := models.ErrorResponse{Error: summary}
	if err != nil {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
