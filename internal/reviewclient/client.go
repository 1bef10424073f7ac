package reviewclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"permit-backend/internal/reviews"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the review API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("review api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("review api %d: %s", e.StatusCode, e.Message)
}

// Client talks to the plan review HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token so uploads are attributed to a user.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// New builds a Client for an API rooted at baseURL, e.g. http://localhost:5001/api.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type uploadBody struct {
	ImageBase64 string `json:"imageBase64"`
	FileName    string `json:"fileName,omitempty"`
	City        string `json:"city,omitempty"`
}

type uploadResult struct {
	ReviewID string `json:"reviewId"`
	Status   string `json:"status"`
}

func (c *Client) SubmitReview(ctx context.Context, image []byte, fileName, city string) (string, error) {
	payload, err := json.Marshal(uploadBody{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		FileName:    fileName,
		City:        city,
	})
	if err != nil {
		return "", err
	}
	var out uploadResult
	if err := c.do(ctx, http.MethodPost, "/planreview/upload", bytes.NewReader(payload), &out); err != nil {
		return "", err
	}
	if out.ReviewID == "" {
		return "", errors.New("review api returned no reviewId")
	}
	return out.ReviewID, nil
}

// GetReview returns reviews.ErrNotFound for a 404.
func (c *Client) GetReview(ctx context.Context, id string) (reviews.Review, error) {
	var out reviews.Review
	err := c.do(ctx, http.MethodGet, "/planreview/"+url.PathEscape(id), nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return reviews.Review{}, fmt.Errorf("%w: %s", reviews.ErrNotFound, id)
	}
	return out, err
}

func (c *Client) ListRecent(ctx context.Context, count int) ([]reviews.Review, error) {
	var out []reviews.Review
	if err := c.do(ctx, http.MethodGet, "/planreview?count="+strconv.Itoa(count), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

var _ Boundary = (*Client)(nil)
