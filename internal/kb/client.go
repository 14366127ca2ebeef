// Package kb uploads rendered shard files to the knowledge-base target and
// associates the resulting documents with a conversational agent.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ClientConfig controls the knowledge-base client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements catalog.Uploader over the knowledge-base HTTP API.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("knowledge base base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}, nil
}

type uploadResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// UploadFile sends a named file's full content and returns the opaque
// document identifier assigned by the target.
func (c *Client) UploadFile(ctx context.Context, name string, content []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("write upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/files", &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("upload %s: status %d", name, resp.StatusCode)
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode upload response for %s: %w", name, err)
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("upload %s: empty document id (error: %s)", name, decoded.Error)
	}

	c.logger.Debug("file uploaded", zap.String("file", name), zap.String("document_id", decoded.ID))
	return decoded.ID, nil
}

type assignRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// AssignDocuments associates a document-identifier list with an agent.
func (c *Client) AssignDocuments(ctx context.Context, agentID string, documentIDs []string) error {
	payload, err := json.Marshal(assignRequest{DocumentIDs: documentIDs})
	if err != nil {
		return fmt.Errorf("marshal assign request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/agents/%s/documents", c.cfg.BaseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build assign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("assign documents to %s: %w", agentID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("assign documents to %s: status %d", agentID, resp.StatusCode)
	}
	return nil
}
