package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Constyk20/zika-malaria-backend/internal/model"
)

const (
	maxRemoteBodyBytes = 1 << 20

	// Suggested wait when the scorer serves a bot-mitigation page without a
	// Retry-After header.
	defaultOverloadRetryAfter = 30 * time.Second
)

// RemoteClient talks to the external AI risk scoring service.
type RemoteClient struct {
	baseURL string
	http    *http.Client
}

func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// remotePayload is the exact body the scoring service expects. Symptoms and
// comorbidities stay local: the deployed model was trained on these three
// features only.
type remotePayload struct {
	Age           int    `json:"age"`
	Sex           string `json:"sex"`
	TravelHistory string `json:"travel_history"`
}

// Predict performs a single scoring attempt and classifies the outcome.
// Network failures and 5xx responses come back as transient errors, a
// structured 429 as a rate-limit error, and a 429 with an HTML body as an
// OverloadedError. Anything else non-2xx will not improve with a retry and is
// returned as a plain error.
func (c *RemoteClient) Predict(ctx context.Context, req model.PredictionRequest) (*model.PredictionResult, error) {
	payload, err := json.Marshal(remotePayload{
		Age:           req.Age,
		Sex:           string(req.Sex),
		TravelHistory: req.TravelHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal scoring payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build scoring request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Timeouts and refused connections land here.
		return nil, &transientError{cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBodyBytes))
	if err != nil {
		return nil, &transientError{cause: fmt.Errorf("read scoring response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if looksLikeHTML(resp.Header.Get("Content-Type"), body) {
			return nil, &OverloadedError{RetryAfter: retryAfter(resp.Header, defaultOverloadRetryAfter)}
		}
		return nil, &rateLimitError{RetryAfter: retryAfter(resp.Header, 0)}
	case resp.StatusCode >= 500:
		return nil, &transientError{cause: fmt.Errorf("remote scorer returned %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("remote scorer returned %d: %s", resp.StatusCode, snippet(body))
	}

	return normalizeRemote(body)
}

// looksLikeHTML spots bot-mitigation challenge pages, which arrive as HTML
// instead of the scorer's JSON.
func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<"))
}

// retryAfter reads the Retry-After header as integer seconds. HTTP-date
// values are ignored; the scorer has never sent them.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
