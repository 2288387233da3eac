package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Constyk20/zika-malaria-backend/internal/model"
)

func TestRemoteClientSendsExpectedPayload(t *testing.T) {
	var got remotePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"riskLevel": "LOW RISK", "confidence": 0.9}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Second)
	result, err := client.Predict(context.Background(), model.PredictionRequest{
		Age:           41,
		Sex:           model.SexFemale,
		TravelHistory: "none",
		Symptoms:      []string{"fever"},
	})
	require.NoError(t, err)

	assert.Equal(t, remotePayload{Age: 41, Sex: "F", TravelHistory: "none"}, got)
	assert.Equal(t, model.RiskLow, result.RiskLevel)
	assert.Equal(t, model.SourceRemote, result.Source)
}

func TestRemoteClientClassifiesFailures(t *testing.T) {
	t.Run("structured 429 carries the server hint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "rate limit exceeded"}`))
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		var rl *rateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 5*time.Second, rl.RetryAfter)
	})

	t.Run("structured 429 without a hint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "slow down"}`))
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		var rl *rateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Zero(t, rl.RetryAfter)
	})

	t.Run("429 with an html challenge page means overloaded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`<!DOCTYPE html><html><body>Checking your browser</body></html>`))
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		var overloaded *OverloadedError
		require.ErrorAs(t, err, &overloaded)
		assert.Equal(t, defaultOverloadRetryAfter, overloaded.RetryAfter)
	})

	t.Run("html body is spotted even with a lying content type", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "12")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`  <html><body>blocked</body></html>`))
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		var overloaded *OverloadedError
		require.ErrorAs(t, err, &overloaded)
		assert.Equal(t, 12*time.Second, overloaded.RetryAfter)
	})

	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		var transient *transientError
		require.ErrorAs(t, err, &transient)
	})

	t.Run("refused connection is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // nothing listens here anymore

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		var transient *transientError
		require.ErrorAs(t, err, &transient)
	})

	t.Run("timeout is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, 5*time.Millisecond).Predict(context.Background(), validRequest())
		var transient *transientError
		require.ErrorAs(t, err, &transient)
	})

	t.Run("4xx other than 429 is not retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "bad features"}`))
		}))
		defer srv.Close()

		_, err := NewRemoteClient(srv.URL, time.Second).Predict(context.Background(), validRequest())
		require.Error(t, err)
		var rl *rateLimitError
		var transient *transientError
		assert.False(t, errors.As(err, &rl), "a 400 must not be retried")
		assert.False(t, errors.As(err, &transient), "a 400 must not be retried")
	})
}

func TestRetryAfterHeaderParsing(t *testing.T) {
	mk := func(v string) http.Header {
		h := http.Header{}
		if v != "" {
			h.Set("Retry-After", v)
		}
		return h
	}

	assert.Equal(t, 7*time.Second, retryAfter(mk("7"), 0))
	assert.Equal(t, time.Duration(0), retryAfter(mk(""), 0))
	assert.Equal(t, 9*time.Second, retryAfter(mk(""), 9*time.Second))
	// HTTP-date and garbage values fall back
	assert.Equal(t, 9*time.Second, retryAfter(mk("Wed, 21 Oct 2026 07:28:00 GMT"), 9*time.Second))
	assert.Equal(t, 9*time.Second, retryAfter(mk("-3"), 9*time.Second))
}

func validRequest() model.PredictionRequest {
	return model.PredictionRequest{Age: 30, Sex: model.SexMale, TravelHistory: "none"}
}
