package tutor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Input{
	UserProfile:     "Two years of frontend work, I learn best by building things.",
	JavascriptTopic: "Closures",
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) RecordTutorCall(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func answer(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	body, err := sonic.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
				"finishReason": "STOP",
			},
		},
	})
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func testConfig(endpoint string) config.TutorConfig {
	return config.TutorConfig{
		Endpoint: endpoint,
		APIKey:   "secret",
		Model:    "test-model",
		Timeout:  5 * time.Second,
	}
}

func newTestClient(endpoint string, opts ...Option) *Client {
	opts = append([]Option{WithRetry(0, time.Millisecond, time.Millisecond)}, opts...)
	return New(testConfig(endpoint), nil, opts...)
}

func TestAssess(t *testing.T) {
	var gotPath, gotKey, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req generateRequest
		require.NoError(t, sonic.Unmarshal(raw, &req))
		require.Len(t, req.Contents, 1)
		gotPrompt = req.Contents[0].Parts[0].Text
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		answer(t, w, `{"assessment":"You know the basics.","recommendations":"Build a memoize helper."}`)
	}))
	defer srv.Close()

	metrics := &recordingMetrics{}
	out, err := newTestClient(srv.URL, WithMetrics(metrics)).Assess(context.Background(), sample)
	require.NoError(t, err)

	assert.Equal(t, Output{Assessment: "You know the basics.", Recommendations: "Build a memoize helper."}, out)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Contains(t, gotPrompt, "Topic: Closures")
	assert.Contains(t, gotPrompt, sample.UserProfile)
	assert.Equal(t, []string{"ok"}, metrics.outcomes)
}

func TestAssessFencedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		answer(t, w, "```json\n{\"assessment\":\"a\",\"recommendations\":\"r\"}\n```")
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Assess(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, Output{Assessment: "a", Recommendations: "r"}, out)
}

func TestAssessInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
	}{
		{name: "empty profile", in: Input{JavascriptTopic: "Promises"}},
		{name: "blank topic", in: Input{UserProfile: "beginner", JavascriptTopic: "   "}},
		{name: "long profile", in: Input{UserProfile: strings.Repeat("x", MaxProfileLength+1), JavascriptTopic: "Promises"}},
		{name: "long topic", in: Input{UserProfile: "beginner", JavascriptTopic: strings.Repeat("é", MaxTopicLength+1)}},
	}

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Assess(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, hits.Load())
}

func TestAssessNotConfigured(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.APIKey = ""
	c := New(cfg, nil)

	assert.False(t, c.Configured())
	_, err := c.Assess(context.Background(), sample)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAssessUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[]}`))
			},
		},
		{
			name: "answer is not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				answer(t, w, "Closures capture variables.")
			},
		},
		{
			name: "answer misses a field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				answer(t, w, `{"assessment":"only this"}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(srv.URL).Assess(context.Background(), sample)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestAssessRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		answer(t, w, `{"assessment":"a","recommendations":"r"}`)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil, WithRetry(2, time.Millisecond, 5*time.Millisecond))
	out, err := c.Assess(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Assessment)
	assert.Equal(t, int32(2), hits.Load())
}

func TestAssessCircuitOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.New("tutor-test", resilience.Settings{
		Timeout: time.Hour,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	metrics := &recordingMetrics{}
	c := newTestClient(srv.URL, WithBreaker(breaker), WithMetrics(metrics))

	for i := 0; i < 4; i++ {
		_, err := c.Assess(context.Background(), sample)
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, resilience.StateOpen, c.BreakerState())
	assert.Equal(t, []string{"error", "error", "rejected", "rejected"}, metrics.outcomes)
}

func TestAssessCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		answer(t, w, `{"assessment":"a","recommendations":"r"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv.URL)
	_, err := c.Assess(ctx, sample)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestPrompt(t *testing.T) {
	p := Prompt(Input{UserProfile: "  new to JS ", JavascriptTopic: " Promises "})
	assert.Contains(t, p, "Learner profile: new to JS\n")
	assert.Contains(t, p, "Topic: Promises\n")
	assert.Contains(t, p, `"assessment"`)
	assert.Contains(t, p, `"recommendations"`)
}
