// Package backend is the HTTP client for the reporting REST API: validator
// tables, templates, merged producer data and record submission.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/reportsheets/internal/schema"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// Client talks to the reporting backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// New creates a backend client. token is sent as a bearer token when set.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger.With(slog.String("component", "backend_client")),
	}
}

// ListValidators fetches one page of validator tables.
// GET /validators/pagination?page=&limit=
func (c *Client) ListValidators(ctx context.Context, page, limit int) ([]schema.Validator, error) {
	q := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	var resp struct {
		Validators []schema.Validator `json:"validators"`
	}
	if err := c.do(ctx, "list validators", http.MethodGet, "/validators/pagination", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Validators, nil
}

// GetTemplate fetches a published template with its fields and the
// validators it references.
// GET /pTemplates/template/{id}
func (c *Client) GetTemplate(ctx context.Context, id string) (*schema.Template, error) {
	var tpl schema.Template
	path := "/pTemplates/template/" + url.PathEscape(id)
	if err := c.do(ctx, "get template", http.MethodGet, path, nil, nil, &tpl); err != nil {
		return nil, err
	}
	if tpl.ID == "" {
		tpl.ID = id
	}
	return &tpl, nil
}

// MergedData fetches the records a producer has already loaded for a
// published template.
// GET /pTemplates/dimension/mergedData?pubTem_id=&email=
func (c *Client) MergedData(ctx context.Context, pubTemID, email string) ([]schema.Record, error) {
	q := url.Values{
		"pubTem_id": {pubTemID},
		"email":     {email},
	}
	var resp struct {
		Data []schema.Record `json:"data"`
	}
	if err := c.do(ctx, "merged data", http.MethodGet, "/pTemplates/dimension/mergedData", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// LoadRequest is a batch of records for one producer. Edit replaces the
// producer's previous records instead of adding to them.
type LoadRequest struct {
	Email    string          `json:"email"`
	PubTemID string          `json:"pubTem_id"`
	Data     []schema.Record `json:"data"`
	Edit     bool            `json:"edit"`
}

// LoadRecords submits a whole batch. The backend accepts or rejects it as
// a unit; a rejection is returned as *RejectionError.
// PUT /pTemplates/producer/load
func (c *Client) LoadRecords(ctx context.Context, req LoadRequest) (int, error) {
	var resp struct {
		RecordsLoaded int `json:"recordsLoaded"`
	}
	if err := c.do(ctx, "load records", http.MethodPut, "/pTemplates/producer/load", nil, req, &resp); err != nil {
		return 0, err
	}
	c.logger.Info("records loaded",
		slog.String("pub_tem_id", req.PubTemID),
		slog.Int("records", resp.RecordsLoaded),
		slog.Bool("edit", req.Edit),
	)
	return resp.RecordsLoaded, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		slog.String("op", op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusBadRequest {
			var rej RejectionError
			if err := json.Unmarshal(b, &rej); err == nil && len(rej.Details) > 0 {
				return &rej
			}
		}
		return &StatusError{Op: op, Status: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
