// Package drive downloads source documents from Google Drive share links.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// DefaultBaseURL is the Drive v3 files endpoint root.
const DefaultBaseURL = "https://www.googleapis.com/drive/v3"

// fileIDPattern matches both drive.google.com and docs.google.com share links
// and captures the file id segment after /d/.
var fileIDPattern = regexp.MustCompile(`https://(?:drive|docs)\.google\.com(?:/.*|)/d/([0-9a-zA-Z\-_]+)(?:/.*|)`)

// ExtractFileID pulls the Drive file id out of a share link. It returns an
// error when the link is not a recognizable Drive URL.
func ExtractFileID(link string) (string, error) {
	m := fileIDPattern.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return "", domain.ValidationError(fmt.Sprintf("not a Drive link: %q", link), nil)
	}
	return m[1], nil
}

// File is one downloaded Drive file.
type File struct {
	ID       string
	Name     string
	MimeType string
	Content  []byte
}

// ClientConfig configures the Drive client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client downloads file metadata and content over the Drive v3 REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *observability.Logger
}

func NewClient(cfg ClientConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.Nop()
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Download fetches a file's metadata and raw content.
func (c *Client) Download(ctx context.Context, fileID string) (*File, error) {
	c.logger.Debug().Str("file_id", fileID).Msg("Downloading Drive file")

	meta, err := c.fetchMetadata(ctx, fileID)
	if err != nil {
		return nil, err
	}

	content, err := c.fetchContent(ctx, fileID)
	if err != nil {
		return nil, err
	}

	name := meta.Name
	if name == "" {
		name = fileID
	}

	c.logger.Info().
		Str("file_id", fileID).
		Str("name", name).
		Int("bytes", len(content)).
		Msg("Downloaded Drive file")

	return &File{ID: fileID, Name: name, MimeType: meta.MimeType, Content: content}, nil
}

type fileMetadata struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

func (c *Client) fetchMetadata(ctx context.Context, fileID string) (*fileMetadata, error) {
	url := fmt.Sprintf("%s/files/%s?fields=id,name,mimeType", c.baseURL, fileID)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, driveStatusError(fileID, resp)
	}

	var meta fileMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, domain.APIError("failed to decode Drive metadata", err)
	}
	return &meta, nil
}

func (c *Client) fetchContent(ctx context.Context, fileID string) ([]byte, error) {
	url := fmt.Sprintf("%s/files/%s?alt=media", c.baseURL, fileID)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, driveStatusError(fileID, resp)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.IOError("failed to read Drive file content", err)
	}
	return content, nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.APIError("failed to create Drive request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.APIError("Drive request failed", err)
	}
	return resp, nil
}

func driveStatusError(fileID string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
	return domain.APIError(fmt.Sprintf("Drive returned status %d for file %s: %s", resp.StatusCode, fileID, string(body)), nil)
}
