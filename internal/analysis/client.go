package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"decentra/internal/config"
	"decentra/internal/models"
)

var ErrUnavailable = errors.New("analyzer unavailable")

// File is one image submitted for analysis.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Client talks to the damage detection service.
type Client struct {
	endpoint  string
	threshold float64
	http      *http.Client
}

func NewClient(cfg config.AnalyzerConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		endpoint:  strings.TrimSuffix(cfg.URL, "/") + "/api/analyze",
		threshold: cfg.ScoreThreshold,
		http:      &http.Client{Timeout: timeout},
	}
}

// Analyze submits all files in one request and returns findings in the same
// order as files.
func (c *Client) Analyze(ctx context.Context, files []File) ([]models.Findings, error) {
	if len(files) == 0 {
		return nil, nil
	}

	body, contentType, err := encodeFiles(files)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse analyzer url: %w", err)
	}
	q := u.Query()
	q.Set("score_threshold", strconv.FormatFloat(c.threshold, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build analyzer request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(decoded.Results) < len(files) {
		return nil, fmt.Errorf("%w: got %d results for %d files", ErrUnavailable, len(decoded.Results), len(files))
	}

	findings := make([]models.Findings, len(files))
	for i := range files {
		findings[i] = MapResult(decoded.Results[i])
	}
	return findings, nil
}

func encodeFiles(files []File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
