// Package api provides the REST client for the notebook server's
// session, kernel, and contents endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nbkit/nbkit/pkg/types"
)

var (
	// ErrNotFound is returned when the server reports a missing resource.
	ErrNotFound = errors.New("not found")
)

// Client talks to a notebook server over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given server base URL. The token may be
// empty for unauthenticated servers.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateSession issues a session-creation call and returns the session value.
func (c *Client) CreateSession(ctx context.Context, req types.SessionRequest) (*types.Session, error) {
	var session types.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

// ListKernels returns the kernels currently running on the server.
func (c *Client) ListKernels(ctx context.Context) ([]types.Kernel, error) {
	var kernels []types.Kernel
	if err := c.do(ctx, http.MethodGet, "/api/kernels", nil, &kernels); err != nil {
		return nil, fmt.Errorf("failed to list kernels: %w", err)
	}
	return kernels, nil
}

// DeleteKernel shuts down a kernel by id.
func (c *Client) DeleteKernel(ctx context.Context, kernelID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/kernels/"+kernelID, nil, nil); err != nil {
		return fmt.Errorf("failed to delete kernel: %w", err)
	}
	return nil
}

// contentsRequest is the body of a contents fetch call.
type contentsRequest struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// contentsPut is the body of a contents save call.
type contentsPut struct {
	Path    string          `json:"path"`
	Content *types.Notebook `json:"content"`
	Type    string          `json:"type"`
	Format  string          `json:"format"`
}

// OpenNotebook fetches the serialized notebook document at path.
func (c *Client) OpenNotebook(ctx context.Context, path string) (*types.Notebook, error) {
	var nb types.Notebook
	req := contentsRequest{Path: path, Type: "notebook"}
	if err := c.do(ctx, http.MethodPost, "/api/contents", req, &nb); err != nil {
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	return &nb, nil
}

// SaveNotebook writes the notebook document back to the content store.
func (c *Client) SaveNotebook(ctx context.Context, path string, nb *types.Notebook) error {
	req := contentsPut{Path: path, Content: nb, Type: "notebook", Format: "json"}
	if err := c.do(ctx, http.MethodPut, "/api/contents", req, nil); err != nil {
		return fmt.Errorf("failed to save notebook: %w", err)
	}
	return nil
}

// do performs a JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
