package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finlens-ai/invoice-engine/internal/domain"
	"github.com/finlens-ai/invoice-engine/internal/observability"
)

// DefaultBaseURL is the Sheets v4 API root.
const DefaultBaseURL = "https://sheets.googleapis.com"

// ClientConfig configures the Sheets API client.
type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements Store over the Google Sheets v4 values API. All writes
// use RAW input so cell content is stored exactly as sent.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *observability.Logger
}

var _ Store = (*Client)(nil)

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
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Tabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties.title", c.baseURL, spreadsheetID)

	var result struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}

	tabs := make([]string, 0, len(result.Sheets))
	for _, s := range result.Sheets {
		tabs = append(tabs, s.Properties.Title)
	}
	return tabs, nil
}

func (c *Client) ReadRange(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", c.baseURL, spreadsheetID, url.PathEscape(a1Range))

	var result struct {
		Values [][]interface{} `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(result.Values))
	for _, raw := range result.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, domain.Stringify(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) UpdateRange(ctx context.Context, spreadsheetID, a1Range string, values [][]string) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		c.baseURL, spreadsheetID, url.PathEscape(a1Range))

	body := map[string]interface{}{"values": values}
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

func (c *Client) BatchUpdate(ctx context.Context, spreadsheetID string, updates []RangeUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values:batchUpdate", c.baseURL, spreadsheetID)

	data := make([]map[string]interface{}, 0, len(updates))
	for _, u := range updates {
		data = append(data, map[string]interface{}{"range": u.Range, "values": u.Values})
	}
	body := map[string]interface{}{
		"valueInputOption": "RAW",
		"data":             data,
	}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *Client) AppendRows(ctx context.Context, spreadsheetID, a1Range string, values [][]string) error {
	if len(values) == 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		c.baseURL, spreadsheetID, url.PathEscape(a1Range))

	body := map[string]interface{}{"values": values}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.SheetError("failed to encode Sheets request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return domain.SheetError("failed to create Sheets request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SheetError("Sheets request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return domain.SheetError(fmt.Sprintf("Sheets API returned status %d: %s", resp.StatusCode, string(snippet)), nil)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.SheetError("failed to decode Sheets response", err)
		}
	}
	return nil
}
