// Package parse talks to the external document-parsing service that turns
// uploaded invoice files into markdown.
package parse

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

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// JobStatus is the parsing service's job state.
type JobStatus string

const (
	StatusSuccess JobStatus = "SUCCESS"
	StatusPending JobStatus = "PENDING"
	StatusError   JobStatus = "ERROR"
)

// ClientConfig configures the parsing service client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	ProjectID string
	Timeout   time.Duration
}

// Client is an HTTP client for the parsing service's upload/poll/fetch API.
type Client struct {
	baseURL    string
	apiKey     string
	projectID  string
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a parsing service client. Redirects are never followed
// automatically: result fetches may redirect to a presigned URL that must be
// requested without the Authorization header.
func NewClient(cfg ClientConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		projectID: strings.TrimSpace(cfg.ProjectID),
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Upload submits one document and returns the parsing job id.
func (c *Client) Upload(ctx context.Context, content []byte, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", domain.IOError("failed to build upload form", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", domain.IOError("failed to build upload form", err)
	}
	if err := writer.Close(); err != nil {
		return "", domain.IOError("failed to build upload form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/parsing/upload", &body)
	if err != nil {
		return "", domain.APIError("failed to create upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Debug().
		Str("filename", filename).
		Int("bytes", len(content)).
		Msg("Uploading document to parsing service")

	var result struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(req, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", domain.APIError("upload response missing job id", nil)
	}

	c.logger.Info().
		Str("filename", filename).
		Str("job_id", result.ID).
		Msg("Parsing job created")
	return result.ID, nil
}

// PollStatus returns the current state of a parsing job.
func (c *Client) PollStatus(ctx context.Context, jobID string) (JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/parsing/job/"+jobID, nil)
	if err != nil {
		return "", domain.APIError("failed to create status request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	var result struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(req, &result); err != nil {
		return "", err
	}
	return JobStatus(result.Status), nil
}

// FetchResult retrieves the markdown output of a completed job. A redirect
// response is followed once, without credentials, since the target is a
// presigned URL that rejects extra auth headers.
func (c *Client) FetchResult(ctx context.Context, jobID string) (string, error) {
	url := c.baseURL + "/api/v1/parsing/job/" + jobID + "/result/markdown"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", domain.APIError("failed to create result request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/markdown")
	if c.projectID != "" {
		req.Header.Set("X-Project-ID", c.projectID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.APIError("result fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return readBody(resp.Body)
	}

	if isRedirect(resp.StatusCode) {
		location := resp.Header.Get("Location")
		if location == "" {
			return "", domain.APIError(fmt.Sprintf("result fetch redirected without Location (status %d)", resp.StatusCode), nil)
		}
		io.Copy(io.Discard, resp.Body)
		return c.fetchPresigned(ctx, location)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
	return "", domain.APIError(fmt.Sprintf("result fetch failed with status %d: %s", resp.StatusCode, string(body)), nil)
}

func (c *Client) fetchPresigned(ctx context.Context, location string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", domain.APIError("failed to create presigned request", err)
	}
	req.Header.Set("Accept", "text/markdown")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.APIError("presigned result fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return "", domain.APIError(fmt.Sprintf("presigned result fetch failed with status %d: %s", resp.StatusCode, string(body)), nil)
	}
	return readBody(resp.Body)
}

// doJSON executes a request expecting a 2xx JSON response.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.APIError("parsing service request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return domain.APIError(fmt.Sprintf("parsing service returned status %d: %s", resp.StatusCode, string(body)), nil)
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return domain.APIError("failed to decode parsing service response", err)
	}
	return nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusFound, http.StatusSeeOther, http.StatusTemporaryRedirect:
		return true
	}
	return false
}

func decodeJSON(r io.Reader, out interface{}) error {
	return json.NewDecoder(r).Decode(out)
}

func readBody(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", domain.IOError("failed to read response body", err)
	}
	return string(data), nil
}
