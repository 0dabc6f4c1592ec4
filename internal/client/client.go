// Package client binds the meme generation service's HTTP API:
//
//	POST /upload             submit a photo, video or YouTube link; returns a task id
//	GET  /status/{task_id}   poll a task
//	GET  /get_all_memes      list every generated meme
//	POST /custom_caption     re-caption a generated meme
//
// Client implements operation.Service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomasbasham/memegen/internal/operation"
)

const (
	// DefaultLatestPath lists all generated memes. Some deployments expose the
	// same listing as "/get_memes".
	DefaultLatestPath = "/get_all_memes"

	requestIDHeader = "X-Request-ID"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client: unexpected status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("client: unexpected status %d", e.Code)
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithLatestPath sets the path used to list generated memes.
func WithLatestPath(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.latestPath = p
		}
	}
}

// Client talks to a single meme generation service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	latestPath string
	logger     zerolog.Logger
}

var _ operation.Service = (*Client)(nil)

// New creates a Client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		latestPath: DefaultLatestPath,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Upload submits req. Photos and videos are sent as a multipart form, links as
// a JSON body.
func (c *Client) Upload(ctx context.Context, req *operation.UploadRequest) (*operation.Receipt, error) {
	var (
		body        io.Reader
		contentType string
	)

	switch req.Kind {
	case operation.KindPhoto, operation.KindVideo:
		buf, ct, err := encodeMultipart(req)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case operation.KindLink:
		buf, err := json.Marshal(linkRequest{YoutubeLink: req.TrimmedLink()})
		if err != nil {
			return nil, fmt.Errorf("client: failed to encode link request: %w", err)
		}
		body, contentType = bytes.NewReader(buf), "application/json"
	default:
		return nil, fmt.Errorf("client: unsupported upload kind %q", req.Kind)
	}

	var resp uploadResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("/upload"), body, contentType, &resp); err != nil {
		return nil, err
	}
	return &operation.Receipt{Success: resp.Success, TaskID: resp.TaskID, Error: resp.Error}, nil
}

// Status fetches the state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (*operation.Status, error) {
	if taskID == "" || taskID == "." || taskID == ".." {
		return nil, fmt.Errorf("client: invalid task id %q", taskID)
	}

	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("/status", taskID), nil, "", &resp); err != nil {
		return nil, err
	}
	return &operation.Status{
		Ready:   resp.Ready,
		Success: resp.Success,
		Memes:   resp.Memes,
		Error:   resp.Error,
	}, nil
}

// Memes lists every generated meme.
func (c *Client) Memes(ctx context.Context) ([]string, error) {
	var resp memesResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.latestPath), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Memes, nil
}

// CustomCaption asks the service to re-caption memeFile.
func (c *Client) CustomCaption(ctx context.Context, memeFile, caption string) (*operation.Receipt, error) {
	buf, err := json.Marshal(captionRequest{MemeFile: memeFile, Caption: caption, Custom: "y"})
	if err != nil {
		return nil, fmt.Errorf("client: failed to encode caption request: %w", err)
	}

	var resp captionResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("/custom_caption"), bytes.NewReader(buf), "application/json", &resp); err != nil {
		return nil, err
	}
	return &operation.Receipt{Success: resp.Success, Error: resp.Error}, nil
}

// ResolveURL returns the absolute URL of an artefact reference, which the
// service may report relative to its own root. Unparsable references are
// returned unchanged.
func (c *Client) ResolveURL(rawURL string) string {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return c.baseURL.ResolveReference(ref).String()
}

// Download opens a generated artefact. Relative URLs are resolved against the
// service's base URL. The caller must close the returned body.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("client: invalid artefact URL %q: %w", rawURL, err)
	}
	target := c.baseURL.ResolveReference(ref).String()

	req, err := c.newRequest(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("client: download %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, "", &StatusError{Code: resp.StatusCode}
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// endpoint joins p to the base URL, followed by each segment escaped as a
// single path element.
func (c *Client) endpoint(p string, segments ...string) string {
	u := *c.baseURL
	path := strings.TrimSuffix(u.Path, "/") + p
	rawPath := strings.TrimSuffix(u.EscapedPath(), "/") + p
	for _, seg := range segments {
		path += "/" + seg
		rawPath += "/" + url.PathEscape(seg)
	}
	u.Path, u.RawPath = path, rawPath
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("client: failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.New().String())
	return req, nil
}

// do issues one request and decodes a JSON answer into out.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string, out any) error {
	req, err := c.newRequest(ctx, method, target, body, contentType)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("request_id", req.Header.Get(requestIDHeader)).
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("service request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func encodeMultipart(req *operation.UploadRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(req.Kind.FormField()), quoteEscaper.Replace(req.File.Name)))
	h.Set("Content-Type", req.File.ContentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("client: failed to create form part: %w", err)
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, "", fmt.Errorf("client: failed to write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("client: failed to close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
