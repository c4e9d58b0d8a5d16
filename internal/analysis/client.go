package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nourmokhtar/breastCancerBOT/internal/audio"
	"github.com/nourmokhtar/breastCancerBOT/internal/metrics"
)

// maxResponseSize bounds how much of a response body is read
const maxResponseSize = 10 << 20

// Client provides HTTP client functionality for the analysis backend
type Client struct {
	config     Config
	baseURL    *url.URL
	httpClient *http.Client
	semaphore  chan struct{} // concurrency limit
	metrics    *metrics.Metrics

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains analysis client configuration
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int
	VoicePath     string
	QueryPath     string
	TextPath      string
	FramePath     string
	UserAgent     string
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new analysis HTTP client
func NewClient(config Config, m *metrics.Metrics) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", config.BaseURL, err)
	}

	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	if config.VoicePath == "" {
		config.VoicePath = "/analyze_voice"
	}
	if config.QueryPath == "" {
		config.QueryPath = "/api/query"
	}
	if config.TextPath == "" {
		config.TextPath = "/analyze"
	}
	if config.FramePath == "" {
		config.FramePath = "/analyze_frame"
	}
	if config.UserAgent == "" {
		config.UserAgent = "voiceclient/1.0"
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		baseURL:    baseURL,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
		metrics:    m,
	}, nil
}

// HTTPClient returns the underlying HTTP client, for fetching response audio
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ResolveURL resolves a URL returned by the backend, such as audio_url,
// against the base URL
func (c *Client) ResolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// AnalyzeVoice uploads a recording to the voice endpoint as a multipart body
// with a single file field
func (c *Client) AnalyzeVoice(ctx context.Context, payload *audio.Payload, requestID string) (*VoiceResult, error) {
	body, contentType, err := createMultipartBody(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	var result VoiceResult
	if err := c.do(ctx, c.config.VoicePath, body, contentType, false, requestID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Query sends a message to the text assistant
func (c *Client) Query(ctx context.Context, message string) (*QueryResult, error) {
	var result QueryResult
	if err := c.postJSON(ctx, c.config.QueryPath, map[string]string{"message": message}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeText sends free text for emotion analysis
func (c *Client) AnalyzeText(ctx context.Context, text string) (*TextResult, error) {
	var result TextResult
	if err := c.postJSON(ctx, c.config.TextPath, map[string]string{"text": text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeFrame sends one camera frame encoded as a data URL
func (c *Client) AnalyzeFrame(ctx context.Context, image string) (*FrameResult, error) {
	var result FrameResult
	if err := c.postJSON(ctx, c.config.FramePath, map[string]string{"image": image}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) postJSON(ctx context.Context, path string, request any, out any) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, path, bytes.NewReader(data), "application/json", true, "", out)
}

// do performs a single POST and decodes the JSON response into out
func (c *Client) do(ctx context.Context, path string, body io.Reader, contentType string, acceptJSON bool, requestID string, out any) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return &TransportError{Endpoint: path, Err: ctx.Err()}
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	err := c.doRequest(ctx, path, body, contentType, acceptJSON, requestID, out)

	c.updateAvgResponseTime(time.Since(startTime))
	if err != nil {
		c.incrementFailedRequests()
		c.metrics.RecordBackendRequest(path, outcomeOf(err))
		return err
	}

	c.incrementSuccessRequests()
	c.metrics.RecordBackendRequest(path, "success")
	return nil
}

func (c *Client) doRequest(ctx context.Context, path string, body io.Reader, contentType string, acceptJSON bool, requestID string, out any) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path}).String()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return &TransportError{Endpoint: path, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}

	if requestID == "" {
		requestID = uuid.NewString()
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if acceptJSON {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransportError{Endpoint: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return decodeResponse(path, resp.StatusCode, respBody, out)
}

// decodeResponse maps a response to out or to a typed error. A structured
// "error" field wins over the status code.
func decodeResponse(path string, statusCode int, body []byte, out any) error {
	var envelope struct {
		Error string `json:"error"`
	}
	envelopeErr := json.Unmarshal(body, &envelope)

	if envelopeErr == nil && envelope.Error != "" {
		return &ApplicationError{Endpoint: path, StatusCode: statusCode, Message: envelope.Error}
	}

	if statusCode < 200 || statusCode >= 300 {
		return &TransportError{Endpoint: path, StatusCode: statusCode, Err: errors.New(snippet(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Endpoint: path, StatusCode: statusCode, Err: fmt.Errorf("failed to parse response JSON: %w", err)}
	}

	return nil
}

// createMultipartBody writes the payload as the only part of a form
func createMultipartBody(payload *audio.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(payload.FieldName), escapeQuotes(payload.Filename)))
	header.Set("Content-Type", payload.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := io.Copy(part, payload.Reader()); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "empty response body"
	}
	return s
}

func outcomeOf(err error) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return "application_error"
	}
	return "transport_error"
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}
