package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

// DefaultBaseURL matches the default listen address of `el serve`.
const DefaultBaseURL = "http://localhost:5023/api"

// TransportError is a network failure or an unexpected server response.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorBody is the JSON error payload of the REST service.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Cycle bool   `json:"cycle,omitempty"`
}

// Client issues requests against the collection service. It holds no state
// besides its configuration.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// NewClient returns a client rooted at baseURL, e.g. http://host:5023/api.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured base endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchAll retrieves the full collection.
func (c *Client) FetchAll(ctx context.Context) (*models.Collection, error) {
	var out models.Collection
	if err := c.do(ctx, "fetch elements", http.MethodGet, "/elements", nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.Item{}
	}
	if out.Folders == nil {
		out.Folders = []models.Folder{}
	}
	return &out, nil
}

// CreateItem validates draft and posts it.
func (c *Client) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	var out models.Item
	if err := c.do(ctx, "create item", http.MethodPost, "/items", draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFolder validates draft and posts it.
func (c *Client) CreateFolder(ctx context.Context, draft models.FolderDraft) (*models.Folder, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	var out models.Folder
	if err := c.do(ctx, "create folder", http.MethodPost, "/folders", draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateElement sends a partial update to the collection selected by u.Kind.
func (c *Client) UpdateElement(ctx context.Context, id string, u models.Update) (models.Element, error) {
	if id == "" {
		return models.Element{}, &models.ValidationError{Field: "id", Message: "element id is required"}
	}
	if err := u.Validate(); err != nil {
		return models.Element{}, err
	}

	path := "/" + url.PathEscape(id)
	switch u.Kind {
	case models.KindItem:
		var out models.Item
		if err := c.do(ctx, "update item", http.MethodPut, "/items"+path, u, &out); err != nil {
			return models.Element{}, err
		}
		return models.ItemElement(&out), nil
	default:
		var out models.Folder
		if err := c.do(ctx, "update folder", http.MethodPut, "/folders"+path, u, &out); err != nil {
			return models.Element{}, err
		}
		return models.FolderElement(&out), nil
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	target := c.baseURL + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(op, target, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// responseError maps rejections to ValidationError and everything else to
// TransportError.
func responseError(op, target string, status int, data []byte) error {
	var body ErrorBody
	_ = json.Unmarshal(data, &body)
	msg := body.Error
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		verr := &models.ValidationError{Field: body.Field, Message: msg}
		if body.Cycle || status == http.StatusConflict {
			verr.Err = models.ErrCycle
		}
		return verr
	}
	return &TransportError{Op: op, URL: target, StatusCode: status, Err: errors.New(msg)}
}
