// Package agent implements the field-device daemon: a durable offline
// queue of captured evaluations and the sync loop that drains it to the
// server.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/shelfgrade/shelfgrade/internal/common"
	"github.com/shelfgrade/shelfgrade/internal/models"
)

// Client uploads queued observations to the server.
type Client struct {
	serverURL string
	apiToken  string
	deviceID  string
	http      *http.Client
	logger    *common.Logger
}

// NewClient creates an upload client for the agent.
func NewClient(config *common.Config, logger *common.Logger) *Client {
	return &Client{
		serverURL: config.Agent.ServerURL,
		apiToken:  config.Agent.APIToken,
		deviceID:  config.Agent.DeviceID,
		http:      &http.Client{Timeout: 2 * time.Minute},
		logger:    logger,
	}
}

// Upload submits one observation as a multipart POST. The server
// deduplicates on client_evaluation_id, so re-uploading after a crash is
// safe: a duplicate response counts as success.
func (c *Client) Upload(ctx context.Context, obs *models.PendingObservation) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := map[string]string{
		"client_evaluation_id": obs.ClientEvalID,
		"store_code":           obs.StoreCode,
		"evaluator_id":         obs.EvaluatorID,
		"captured_at":          obs.CapturedAt.Format(time.RFC3339),
	}
	for k, v := range obs.Fields {
		fields[k] = v
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for _, path := range obs.PhotoPaths {
		if err := attachPhoto(w, path); err != nil {
			return err
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload body: %w", err)
	}

	url := c.serverURL + "/api/evaluations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server rejected upload: %s", resp.Status)
	}
	return nil
}

// Probe checks server reachability with a cheap request.
func (c *Client) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode < 500
}

func attachPhoto(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open photo %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile("photos", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy photo %s: %w", path, err)
	}
	return nil
}
