package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/kdduha/apeiron/backend/internal/logger"
	"github.com/kdduha/apeiron/backend/internal/models"
	"github.com/kdduha/apeiron/backend/internal/service"
)

type analyzeResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func main() {
	var (
		endpoint = flag.String("endpoint", "http://localhost:3001/api/analyze-media", "analyze-media endpoint of the proxy")
		dataDir  = flag.String("data", "data", "directory with one sub directory per file extension")
		query    = flag.String("query", service.ApeironAnalysisPrompt, "query sent with every file")
		timeout  = flag.Duration("timeout", 2*time.Minute, "per request timeout")
	)
	flag.Parse()

	log := logger.New("info", true)
	ctx := context.Background()
	client := &http.Client{Timeout: *timeout}

	formats := make([]string, 0)
	for ext := range models.DefaultFormatTable() {
		formats = append(formats, ext)
	}
	sort.Strings(formats)

	var results []BenchResult
	for _, format := range formats {
		entries, err := os.ReadDir(filepath.Join(*dataDir, format))
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			filePath := filepath.Join(*dataDir, format, entry.Name())
			res := benchmarkFile(ctx, client, *endpoint, filePath, *query)

			if res.Err != nil {
				log.Error().Err(res.Err).Str("file", res.File).Msg("benchmark failed")
			} else {
				log.Info().Str("file", res.File).Dur("took", res.Duration).Int("answer_len", res.Answer).Msg("ok")
			}

			results = append(results, res)
		}
	}

	printMarkdown(os.Stdout, results)
}

func benchmarkFile(ctx context.Context, client *http.Client, endpoint, filePath, query string) BenchResult {
	start := time.Now()

	fileRaw, err := os.ReadFile(filePath)
	if err != nil {
		return BenchResult{File: filePath, Err: err}
	}

	content, err := send(ctx, client, endpoint, filepath.Base(filePath), fileRaw, query)

	return BenchResult{
		File:     filepath.Base(filePath),
		Format:   models.Extension(filePath),
		Duration: time.Since(start),
		Answer:   len(content),
		Err:      err,
		Size:     int64(len(fileRaw)),
	}
}

func send(ctx context.Context, client *http.Client, endpoint, fileName string, data []byte, query string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", fileName)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.WriteField("query", query); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status %d: %s",
			resp.StatusCode,
			strings.TrimSpace(string(raw)),
		)
	}

	var parsed analyzeResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("response without choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
