package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	logx "imgbot/pkg/logx"
)

const DefaultFreeImageEndpoint = "https://freeimage.host/api/1/upload"

type FreeImageConfig struct {
	Endpoint string
	APIKey   string
}

// FreeImage uploads through the FreeImage.host v1 API.
type FreeImage struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      logx.Logger
}

func NewFreeImage(cfg FreeImageConfig, timeout time.Duration, log logx.Logger) *FreeImage {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ep := strings.TrimSpace(cfg.Endpoint)
	if ep == "" {
		ep = DefaultFreeImageEndpoint
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FreeImage{
		endpoint: ep,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

type freeImageResponse struct {
	StatusCode int             `json:"status_code"`
	Success    json.RawMessage `json:"success"`
	Image      freeImageImage  `json:"image"`
	Error      *freeImageError `json:"error"`
}

type freeImageImage struct {
	URL string `json:"url"`
}

type freeImageError struct {
	Message string `json:"message"`
}

func (f *FreeImage) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", upstream("empty image")
	}
	body, contentType, err := f.form(data)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	f.log.Debug("freeimage response", logx.Int("status", resp.StatusCode), logx.Int("bytes", len(raw)), logx.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return "", upstream("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var out freeImageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", upstream("decode: %v", err)
	}
	if !truthy(out.Success) {
		msg := "unsuccessful response"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", upstream("%s", msg)
	}
	if strings.TrimSpace(out.Image.URL) == "" {
		return "", upstream("response has no image url")
	}
	return out.Image.URL, nil
}

func (f *FreeImage) form(data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"key": f.apiKey, "action": "upload", "format": "json"} {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("source", "image.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// truthy accepts both the documented object form and a plain boolean.
func truthy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
