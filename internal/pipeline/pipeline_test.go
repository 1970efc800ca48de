package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"
)

type countingBackend struct {
	mu      sync.Mutex
	calls   int
	stamps  []time.Time
	handler func(attempt int, w http.ResponseWriter, r *http.Request)
}

func (b *countingBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls++
	attempt := b.calls
	b.stamps = append(b.stamps, time.Now())
	b.mu.Unlock()
	b.handler(attempt, w, r)
}

func (b *countingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newTestClient(endpoint string, attempts int, delay, timeout time.Duration) *Client {
	return NewClient(Config{
		Endpoint:    endpoint,
		MaxAttempts: attempts,
		RetryDelay:  delay,
		Timeout:     timeout,
	})
}

func fullPayload() map[string]any {
	return map[string]any{
		"result":     "Phishing Analysis Report",
		"risk_level": "high",
		"risk_score": 0.85,
		"features": map[string]bool{
			"has_urgency":          true,
			"has_suspicious_links": true,
			"has_poor_formatting":  false,
		},
		"suspicious_elements": map[string][]string{
			"urls":           {"http://fake-bank.tk/login"},
			"urgent_phrases": {"urgent", "account suspended"},
		},
		"detailed_analysis":        "Credential harvesting attempt impersonating a bank.",
		"security_recommendations": []string{"Do not click any links.", "Report the message."},
	}
}

func TestAnalyzeEmptyTextSkipsNetwork(t *testing.T) {
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	_, err := client.Analyze(context.Background(), "   \n\t")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Kind != FailureNoContent {
		t.Fatalf("kind = %s, want %s", failure.Kind, FailureNoContent)
	}
	if failure.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", failure.Attempts)
	}
	if backend.count() != 0 {
		t.Fatalf("expected zero network calls, got %d", backend.count())
	}
}

func TestAnalyzeHappyPathRoundTrip(t *testing.T) {
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept header = %q", got)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["text"] != "suspicious email body" {
			t.Errorf("request text = %q", req["text"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fullPayload())
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	rep, err := client.Analyze(context.Background(), "suspicious email body")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if rep.RiskLevel != "high" {
		t.Fatalf("risk level = %q", rep.RiskLevel)
	}
	if rep.RiskScore != 0.85 {
		t.Fatalf("risk score = %v", rep.RiskScore)
	}
	if rep.Summary != "Phishing Analysis Report" {
		t.Fatalf("summary = %q", rep.Summary)
	}
	if rep.AIAnalysis != "Credential harvesting attempt impersonating a bank." {
		t.Fatalf("ai analysis = %q", rep.AIAnalysis)
	}
	wantFeatures := map[string]bool{
		"has_urgency":          true,
		"has_suspicious_links": true,
		"has_poor_formatting":  false,
	}
	if !reflect.DeepEqual(rep.DetectedFeatures, wantFeatures) {
		t.Fatalf("features = %v", rep.DetectedFeatures)
	}
	wantElements := map[string][]string{
		"urls":           {"http://fake-bank.tk/login"},
		"urgent_phrases": {"urgent", "account suspended"},
	}
	if !reflect.DeepEqual(rep.SuspiciousElements, wantElements) {
		t.Fatalf("suspicious elements = %v", rep.SuspiciousElements)
	}
	wantRecs := []string{"Do not click any links.", "Report the message."}
	if !reflect.DeepEqual(rep.Recommendations, wantRecs) {
		t.Fatalf("recommendations = %v", rep.Recommendations)
	}
}

func TestAnalyzeMissingScoreAndLevelDefaults(t *testing.T) {
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"minimal response"}`))
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	rep, err := client.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.RiskScore != 0 {
		t.Fatalf("risk score = %v, want 0", rep.RiskScore)
	}
	if rep.RiskLevel != "unknown" {
		t.Fatalf("risk level = %q, want unknown", rep.RiskLevel)
	}
	if rep.DetectedFeatures == nil || rep.SuspiciousElements == nil || rep.Recommendations == nil {
		t.Fatal("collections must default to empty, not nil")
	}
}

func TestAnalyzeRetriesTransient500(t *testing.T) {
	delay := 40 * time.Millisecond
	backend := &countingBackend{handler: func(attempt int, w http.ResponseWriter, _ *http.Request) {
		if attempt < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"overloaded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fullPayload())
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, delay, time.Second)
	rep, err := client.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.RiskLevel != "high" {
		t.Fatalf("risk level = %q", rep.RiskLevel)
	}
	if backend.count() != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", backend.count())
	}
	for i := 1; i < len(backend.stamps); i++ {
		gap := backend.stamps[i].Sub(backend.stamps[i-1])
		if gap < delay {
			t.Fatalf("gap between attempt %d and %d was %v, want >= %v", i, i+1, gap, delay)
		}
	}
}

func TestAnalyzeExhaustsRetriesOn500(t *testing.T) {
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"analysis failed"}`))
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	_, err := client.Analyze(context.Background(), "text")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Kind != FailureServerError {
		t.Fatalf("kind = %s, want %s", failure.Kind, FailureServerError)
	}
	if failure.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", failure.Attempts)
	}
	if backend.count() != 3 {
		t.Fatalf("expected exactly 3 calls, got %d", backend.count())
	}
}

func TestAnalyzeNonTransientStatusFailsFast(t *testing.T) {
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"no such endpoint"}`))
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	_, err := client.Analyze(context.Background(), "text")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Kind != FailureServerError {
		t.Fatalf("kind = %s", failure.Kind)
	}
	if backend.count() != 1 {
		t.Fatalf("404 must not be retried, got %d calls", backend.count())
	}
}

func TestAnalyzeMalformedBodyTruncated(t *testing.T) {
	long := "<html>this is definitely not json " +
		"and it keeps going on and on and on and on and on and on and on and on</html>"
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(long))
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	_, err := client.Analyze(context.Background(), "text")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Kind != FailureMalformedResponse {
		t.Fatalf("kind = %s", failure.Kind)
	}
	if failure.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", failure.Attempts)
	}
	if len(failure.Message) != rawBodyLimit {
		t.Fatalf("message length = %d, want %d", len(failure.Message), rawBodyLimit)
	}
	if failure.Message != long[:rawBodyLimit] {
		t.Fatalf("message should be a prefix of the raw body, got %q", failure.Message)
	}
	if backend.count() != 3 {
		t.Fatalf("expected 3 calls, got %d", backend.count())
	}
}

func TestAnalyzeTimeoutOnFinalAttempt(t *testing.T) {
	release := make(chan struct{})
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices when the client aborts.
		io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}}
	srv := httptest.NewServer(backend)
	// LIFO: release the handlers before Close waits on them.
	defer srv.Close()
	defer close(release)

	client := newTestClient(srv.URL, 2, 10*time.Millisecond, 60*time.Millisecond)
	_, err := client.Analyze(context.Background(), "text")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Kind != FailureTimeout {
		t.Fatalf("kind = %s, want %s", failure.Kind, FailureTimeout)
	}
	if failure.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", failure.Attempts)
	}
	if backend.count() != 2 {
		t.Fatalf("expected 2 calls with no extra retry, got %d", backend.count())
	}
}

func TestAnalyzeConnectionRefusedIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client := newTestClient(endpoint, 2, 10*time.Millisecond, time.Second)
	_, err := client.Analyze(context.Background(), "text")

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if failure.Kind != FailureNetwork {
		t.Fatalf("kind = %s, want %s", failure.Kind, FailureNetwork)
	}
	if failure.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", failure.Attempts)
	}
}

func TestAnalyzeIdempotentAgainstDeterministicBackend(t *testing.T) {
	backend := &countingBackend{handler: func(_ int, w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fullPayload())
	}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	client := newTestClient(srv.URL, 3, 10*time.Millisecond, time.Second)
	first, err := client.Analyze(context.Background(), "identical text")
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := client.Analyze(context.Background(), "identical text")
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reports differ:\n%+v\n%+v", first, second)
	}
}
