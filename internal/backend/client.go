package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"PenguinWatch.dashboard/internal/metrics"
	"PenguinWatch.dashboard/internal/models"
)

// PlaceholderImage is served when a record carries no image reference.
const PlaceholderImage = "/api/placeholder/400/300"

// ErrNoData is returned when the backend answers successfully but holds no
// measurements for the request.
var ErrNoData = errors.New("no measurement data found")

// Client talks to the penguin backend. Each operation issues exactly one
// request and never retries.
type Client struct {
	origin  string
	http    *resty.Client
	stream  *resty.Client
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records every call's outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimeout bounds every non-streaming request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// NewClient creates a client for the backend at origin.
func NewClient(origin string, opts ...Option) *Client {
	origin = strings.TrimRight(origin, "/")
	c := &Client{
		origin: origin,
		http:   resty.New().SetBaseURL(origin).SetTimeout(10 * time.Second),
		// The stream stays open indefinitely, so it gets its own client
		// without a timeout.
		stream: resty.New().SetBaseURL(origin),
	}
	c.http.OnBeforeRequest(setRequestID)
	c.stream.OnBeforeRequest(setRequestID)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func setRequestID(_ *resty.Client, r *resty.Request) error {
	r.SetHeader("X-Request-ID", uuid.NewString())
	return nil
}

// Origin returns the backend origin without a trailing slash.
func (c *Client) Origin() string {
	return c.origin
}

// StreamURL is the live update endpoint.
func (c *Client) StreamURL() string {
	return c.origin + "/stream"
}

// ImageURL turns an image reference into an absolute URL. Relative paths are
// resolved against the backend origin, empty references become the
// placeholder image.
func (c *Client) ImageURL(ref string) string {
	switch {
	case ref == "":
		return c.origin + PlaceholderImage
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "/"):
		return c.origin + ref
	default:
		return c.origin + "/" + ref
	}
}

// Recent returns the most recent measurements of one penguin.
func (c *Client) Recent(ctx context.Context, id string) ([]models.Measurement, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/api/penguin/{id}/recent")
	var out []models.Measurement
	if err := c.decode("recent", resp, err, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = out[i].WithID(id)
	}
	return out, nil
}

// LatestGlobal returns the latest measurements across all penguins.
func (c *Client) LatestGlobal(ctx context.Context) ([]models.Measurement, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/latest-global-measurements")
	var out []models.Measurement
	if err := c.decode("latest_global", resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Detail returns the custom fields and measurement history of one penguin.
// A penguin without measurements yields ErrNoData.
func (c *Client) Detail(ctx context.Context, id string) (models.PenguinDetail, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/api/penguin/{id}/specific")
	var out models.PenguinDetail
	if err := c.decode("detail", resp, err, &out); err != nil {
		return models.PenguinDetail{}, err
	}
	if len(out.Measurements) == 0 {
		return out, ErrNoData
	}
	for i := range out.Measurements {
		out.Measurements[i] = out.Measurements[i].WithID(id)
	}
	return out, nil
}

// Search returns penguin ids matching q. The query is lower-cased before it
// is sent.
func (c *Client) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("q", strings.ToLower(q)).
		Get("/api/penguin/search")
	var out []models.SearchResult
	if err := c.decode("search", resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddMetadata attaches a custom field to a penguin.
func (c *Client) AddMetadata(ctx context.Context, id string, field models.CustomField) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetHeader("Content-Type", "application/json").
		SetBody(field).
		Post("/api/penguin/{id}/metadata")
	return c.decode("add_metadata", resp, err, nil)
}

// ReportTable returns one row per penguin for the given status category.
func (c *Client) ReportTable(ctx context.Context, filter models.StatusFilter) ([]models.ReportRow, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("filter", string(filter)).
		Get("/reports/table")
	var out []models.ReportRow
	if err := c.decode("report_table", resp, err, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportSummary returns the aggregate figures shown above the report table.
func (c *Client) ReportSummary(ctx context.Context) (models.ReportSummary, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/reports/summary")
	var out models.ReportSummary
	if err := c.decode("report_summary", resp, err, &out); err != nil {
		return models.ReportSummary{}, err
	}
	return out, nil
}

// Upload is one field station reading. Image is optional.
type Upload struct {
	Metadata  models.IngestMetadata
	Image     io.Reader
	ImageName string
}

// Ingest posts a reading the way the field station does: a multipart form
// with a JSON metadata part and an optional image part.
func (c *Client) Ingest(ctx context.Context, u Upload) (models.IngestResponse, error) {
	meta, err := json.Marshal(u.Metadata)
	if err != nil {
		return models.IngestResponse{}, fmt.Errorf("encode metadata: %w", err)
	}
	req := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"metadata": string(meta)})
	if u.Image != nil {
		name := u.ImageName
		if name == "" {
			name = "image.jpg"
		}
		req.SetFileReader("image", name, u.Image)
	}
	resp, err := req.Post("/penguin")
	var out models.IngestResponse
	if err := c.decode("ingest", resp, err, &out); err != nil {
		return models.IngestResponse{}, err
	}
	return out, nil
}

// SetCurrentPenguin tells the backend which penguin the next ingest belongs
// to and returns its confirmation message.
func (c *Client) SetCurrentPenguin(ctx context.Context, id string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"id": id}).
		Post("/update-penguin-id")
	var out struct {
		Message string `json:"message"`
	}
	if err := c.decode("set_current_penguin", resp, err, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// OpenStream opens the live update stream. The caller owns the returned body.
func (c *Client) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		Get("/stream")
	if err != nil {
		c.metrics.BackendRequest("stream", "error")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	body := resp.RawBody()
	if !resp.IsSuccess() {
		if body != nil {
			body.Close()
		}
		c.metrics.BackendRequest("stream", "error")
		return nil, upstreamError(resp.StatusCode(), nil)
	}
	c.metrics.BackendRequest("stream", "ok")
	return body, nil
}

// decode turns a resty result into either out or an error. out may be nil
// when the body is not needed.
func (c *Client) decode(op string, resp *resty.Response, err error, out any) error {
	if err != nil {
		c.metrics.BackendRequest(op, "error")
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.IsSuccess() {
		c.metrics.BackendRequest(op, "error")
		return upstreamError(resp.StatusCode(), resp.Body())
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			c.metrics.BackendRequest(op, "error")
			return fmt.Errorf("%s: parse response: %w", op, err)
		}
	}
	c.metrics.BackendRequest(op, "ok")
	return nil
}

func upstreamError(status int, body []byte) error {
	msg := fmt.Sprintf("API error: %d", status)
	var payload struct {
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = fmt.Sprintf("%s (%s)", msg, payload.Error)
	}
	code := models.ErrorCodeUpstreamFailure
	if status == http.StatusNotFound {
		code = models.ErrorCodeNotFound
	}
	return models.NewAPIError(code, msg, nil, status)
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr models.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
