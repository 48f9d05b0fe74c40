package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("tracker token not configured")

// APIError is a failed call to the tracking service, either transport-level
// or reported in the GraphQL response body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("monday api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("monday api error: status=%d message=%s", e.Status, e.Message)
}

// Column is one field value on a tracked item.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Item is a tracked work item with its board and current field values.
type Item struct {
	ID      string
	Name    string
	BoardID string
	Columns []Column
}

// Fields returns the item's columns as a title-to-text snapshot.
func (it Item) Fields() map[string]string {
	out := make(map[string]string, len(it.Columns))
	for _, col := range it.Columns {
		out[col.Title] = col.Text
	}
	return out
}

type ClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	APIVersion string
	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client speaks the tracking service's GraphQL-over-HTTP API. Transient
// failures (429, 5xx) are retried with exponential backoff.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	apiVersion string
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.monday.com/v2"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2024-10"
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		apiVersion: apiVersion,
		userAgent:  strings.TrimSpace(opts.UserAgent),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// Configured reports whether an API token is present. Surfaced on the status
// report so operators can spot a missing credential.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// GetItem fetches an item with its board and current column values.
func (c *Client) GetItem(ctx context.Context, itemID string) (Item, error) {
	query := `
		query ($itemId: [ID!]) {
			items (ids: $itemId) {
				id
				name
				board { id name }
				column_values { id title text }
			}
		}`
	var out struct {
		Items []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Board struct {
				ID string `json:"id"`
			} `json:"board"`
			ColumnValues []Column `json:"column_values"`
		} `json:"items"`
	}
	if err := c.do(ctx, query, map[string]any{"itemId": []string{itemID}}, &out); err != nil {
		return Item{}, err
	}
	if len(out.Items) == 0 {
		return Item{}, &APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("item %s not found", itemID)}
	}
	raw := out.Items[0]
	return Item{
		ID:      raw.ID,
		Name:    raw.Name,
		BoardID: raw.Board.ID,
		Columns: raw.ColumnValues,
	}, nil
}

// AddUpdate posts a comment body on an item.
func (c *Client) AddUpdate(ctx context.Context, itemID, body string) error {
	query := `
		mutation ($itemId: ID!, $body: String!) {
			create_update (item_id: $itemId, body: $body) { id }
		}`
	return c.do(ctx, query, map[string]any{"itemId": itemID, "body": body}, nil)
}

// AddFileByURL attaches an externally hosted file to an item.
func (c *Client) AddFileByURL(ctx context.Context, itemID, fileURL, fileName string) error {
	query := `
		mutation ($itemId: ID!, $fileUrl: String!) {
			add_file_to_update (item_id: $itemId, url: $fileUrl) { id }
		}`
	if err := c.do(ctx, query, map[string]any{"itemId": itemID, "fileUrl": fileURL}, nil); err != nil {
		return err
	}
	slog.Info("uploaded file reference", "item_id", itemID, "file", fileName)
	return nil
}

// ChangeColumnValue sets a column to a plain-text value.
func (c *Client) ChangeColumnValue(ctx context.Context, boardID, itemID, columnID, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	query := `
		mutation ($boardId: ID!, $itemId: ID!, $columnId: String!, $value: JSON!) {
			change_simple_column_value (
				board_id: $boardId,
				item_id: $itemId,
				column_id: $columnId,
				value: $value
			) { id }
		}`
	return c.do(ctx, query, map[string]any{
		"boardId":  boardID,
		"itemId":   itemID,
		"columnId": columnID,
		"value":    string(encoded),
	}, nil)
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	if c == nil {
		return fmt.Errorf("tracker client is nil")
	}
	if c.token == "" {
		return ErrNotConfigured
	}
	bodyBytes, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("API-Version", c.apiVersion)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []struct {
				Message string `json:"message"`
				Extensions struct {
					Code string `json:"code"`
				} `json:"extensions"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return err
		}
		if len(envelope.Errors) > 0 {
			first := envelope.Errors[0]
			return &APIError{Status: resp.StatusCode, Code: first.Extensions.Code, Message: first.Message}
		}
		if out != nil && len(envelope.Data) > 0 {
			return json.Unmarshal(envelope.Data, out)
		}
		return nil
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
