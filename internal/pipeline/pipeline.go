package pipeline

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
)

const (
	// DefaultEndpoint points at the local analysis backend.
	DefaultEndpoint = "http://localhost:8000/analyze_text"

	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
	defaultTimeout     = 10 * time.Second

	// rawBodyLimit caps how much of a malformed body is echoed back.
	rawBodyLimit = 100
)

// Config controls a single analysis client. Zero values fall back to the
// documented defaults.
type Config struct {
	Endpoint    string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client issues analysis requests with bounded fixed-delay retries and
// normalizes the backend's response. Each Analyze call is independent;
// concurrent calls share nothing beyond the underlying http.Client.
type Client struct {
	endpoint    string
	maxAttempts int
	retryDelay  time.Duration
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient constructs a pipeline client, applying defaults for any unset
// configuration value.
func NewClient(cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:    endpoint,
		maxAttempts: attempts,
		retryDelay:  delay,
		timeout:     timeout,
		httpClient:  httpClient,
	}
}

// Analyze submits the message text for analysis and returns the normalized
// report. Terminal failures are returned as a *Failure error carrying the
// classification and the number of attempts made.
func (c *Client) Analyze(ctx context.Context, text string) (Report, error) {
	if strings.TrimSpace(text) == "" {
		return Report{}, &Failure{
			Kind:    FailureNoContent,
			Message: "no message text supplied",
		}
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Report{}, fmt.Errorf("encode request: %w", err)
	}

	var lastFailure *Failure
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, raw, err := c.post(ctx, body)
		if err != nil {
			lastFailure = classifyTransport(err, attempt)
			if attempt == c.maxAttempts {
				return Report{}, lastFailure
			}
			if waitErr := c.wait(ctx); waitErr != nil {
				lastFailure.Message = fmt.Sprintf("%s (retry aborted: %v)", lastFailure.Message, waitErr)
				return Report{}, lastFailure
			}
			continue
		}

		// The body is decoded before the status check so a malformed
		// payload is always reported verbatim rather than hidden
		// behind a status-derived error.
		var payload response
		if parseErr := json.Unmarshal(raw, &payload); parseErr != nil {
			lastFailure = &Failure{
				Kind:     FailureMalformedResponse,
				Message:  truncate(string(raw), rawBodyLimit),
				Attempts: attempt,
			}
			if attempt == c.maxAttempts {
				return Report{}, lastFailure
			}
			if waitErr := c.wait(ctx); waitErr != nil {
				return Report{}, lastFailure
			}
			continue
		}

		if status >= 200 && status < 300 {
			return normalize(payload), nil
		}

		lastFailure = &Failure{
			Kind:     FailureServerError,
			Message:  fmt.Sprintf("%d: %s", status, string(raw)),
			Attempts: attempt,
		}
		if status == http.StatusInternalServerError && attempt < c.maxAttempts {
			if waitErr := c.wait(ctx); waitErr != nil {
				return Report{}, lastFailure
			}
			continue
		}
		return Report{}, lastFailure
	}

	if lastFailure == nil {
		lastFailure = &Failure{Kind: FailureNetwork, Message: "no attempts executed"}
	}
	return Report{}, lastFailure
}

// post performs a single bounded attempt and returns the status code with
// the fully read body.
func (c *Client) post(ctx context.Context, body []byte) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

// wait sleeps for the fixed inter-attempt delay, honoring the caller
// context.
func (c *Client) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.retryDelay):
		return nil
	}
}

func classifyTransport(err error, attempt int) *Failure {
	kind := FailureNetwork
	if isTimeout(err) {
		kind = FailureTimeout
	}
	return &Failure{
		Kind:     kind,
		Message:  err.Error(),
		Attempts: attempt,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
