// Package tutor asks a generative model to assess a learner's grasp of a
// JavaScript topic and to recommend exercises.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/resilience"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidInput  = errors.New("invalid tutor input")
	ErrNotConfigured = errors.New("tutor is not configured")
	ErrUnavailable   = errors.New("tutor is unavailable")
)

// FailureMessage is what learners see when a session cannot be generated
const FailureMessage = "An error occurred while generating your tutoring session. Please try again."

const (
	MaxProfileLength = 2000
	MaxTopicLength   = 200
)

// Input describes the learner and the topic they want to improve on
type Input struct {
	UserProfile     string `json:"user_profile"`
	JavascriptTopic string `json:"javascript_topic"`
}

// Output is one tutoring session
type Output struct {
	Assessment      string `json:"assessment"`
	Recommendations string `json:"recommendations"`
}

// Validate checks both fields are present and bounded
func (in Input) Validate() error {
	profile := strings.TrimSpace(in.UserProfile)
	topic := strings.TrimSpace(in.JavascriptTopic)
	switch {
	case profile == "":
		return fmt.Errorf("%w: user_profile is required", ErrInvalidInput)
	case topic == "":
		return fmt.Errorf("%w: javascript_topic is required", ErrInvalidInput)
	case utf8.RuneCountInString(profile) > MaxProfileLength:
		return fmt.Errorf("%w: user_profile exceeds %d characters", ErrInvalidInput, MaxProfileLength)
	case utf8.RuneCountInString(topic) > MaxTopicLength:
		return fmt.Errorf("%w: javascript_topic exceeds %d characters", ErrInvalidInput, MaxTopicLength)
	}
	return nil
}

// Metrics observes tutor calls
type Metrics interface {
	RecordTutorCall(outcome string, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordTutorCall(string, time.Duration) {}

// Client calls the model's generateContent endpoint
type Client struct {
	cfg     config.TutorConfig
	http    *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger
	metrics Metrics
}

type options struct {
	retries   int
	minWait   time.Duration
	maxWait   time.Duration
	breaker   *resilience.Breaker
	metrics   Metrics
	userAgent string
}

// Option configures a Client
type Option func(*options)

// WithRetry sets how often a failed request is retried by the transport
func WithRetry(max int, minWait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retries = max
		o.minWait = minWait
		o.maxWait = maxWait
	}
}

// WithBreaker replaces the default circuit breaker
func WithBreaker(b *resilience.Breaker) Option {
	return func(o *options) { o.breaker = b }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a client. A config without an API key yields a client whose
// Assess always returns ErrNotConfigured.
func New(cfg config.TutorConfig, logger *logging.Logger, opts ...Option) *Client {
	o := options{
		retries:   3,
		minWait:   time.Second,
		maxWait:   30 * time.Second,
		metrics:   nopMetrics{},
		userAgent: "CodePrep-Tutor/1.0",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.breaker == nil {
		o.breaker = resilience.New("tutor", resilience.Settings{
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c resilience.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		})
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = o.retries
	retryClient.RetryWaitMin = o.minWait
	retryClient.RetryWaitMax = o.maxWait
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	httpClient := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetHeader("User-Agent", o.userAgent).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		if int(cfg.RPS) > burst {
			burst = int(cfg.RPS)
		}
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		breaker: o.breaker,
		log:     logger.Component("tutor"),
		metrics: o.metrics,
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// BreakerState exposes the upstream circuit state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Assess generates a tutoring session for in
func (c *Client) Assess(ctx context.Context, in Input) (Output, error) {
	start := time.Now()
	if err := in.Validate(); err != nil {
		c.metrics.RecordTutorCall("invalid", time.Since(start))
		return Output{}, err
	}
	if !c.Configured() {
		c.metrics.RecordTutorCall("unconfigured", time.Since(start))
		return Output{}, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordTutorCall("throttled", time.Since(start))
		return Output{}, fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}

	out, err := resilience.Execute(c.breaker, func() (Output, error) {
		return c.generate(ctx, in)
	})
	elapsed := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			outcome = "rejected"
		}
		c.metrics.RecordTutorCall(outcome, elapsed)
		c.log.Warn("tutor request failed",
			zap.String("topic", in.JavascriptTopic),
			zap.String("outcome", outcome),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return Output{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.metrics.RecordTutorCall("ok", elapsed)
	c.log.Debug("tutor session generated",
		zap.String("topic", in.JavascriptTopic),
		zap.Duration("duration", elapsed),
	)
	return out, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, in Input) (Output, error) {
	body, err := sonic.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: Prompt(in)}}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return Output{}, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", c.cfg.Model))
	if err != nil {
		return Output{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Output{}, fmt.Errorf("model returned status %d", resp.StatusCode())
	}

	var gen generateResponse
	if err := sonic.Unmarshal(resp.Body(), &gen); err != nil {
		return Output{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		return Output{}, errors.New("model returned no candidates")
	}

	var text strings.Builder
	for _, p := range gen.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return parseAnswer(text.String())
}

// parseAnswer decodes the model's JSON answer, tolerating a fenced block
func parseAnswer(text string) (Output, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var out Output
	if err := sonic.UnmarshalString(text, &out); err != nil {
		return Output{}, fmt.Errorf("failed to decode answer: %w", err)
	}
	if out.Assessment == "" || out.Recommendations == "" {
		return Output{}, errors.New("answer is missing assessment or recommendations")
	}
	return out, nil
}

// Prompt renders the instruction sent to the model
func Prompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a personalized JavaScript tutor. Assess where the learner is weak in the topic below and recommend how to improve.\n\n")
	b.WriteString("Learner profile: ")
	b.WriteString(strings.TrimSpace(in.UserProfile))
	b.WriteString("\nTopic: ")
	b.WriteString(strings.TrimSpace(in.JavascriptTopic))
	b.WriteString("\n\nFirst assess the learner's current understanding of the topic. ")
	b.WriteString("Then give tailored learning resources and practical exercises that build proficiency.\n\n")
	b.WriteString(`Reply with a single JSON object of the form {"assessment": string, "recommendations": string} and nothing else.`)
	return b.String()
}
