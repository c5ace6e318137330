// Package hailuo submits image-to-video jobs to the Hailuo model through the PiAPI task API.
package hailuo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/observability"
	"github.com/dedezza1D/lustra/internal/retry"
)

const (
	provider = "hailuo"

	Model         = "hailuo"
	TaskType      = "video_generation"
	InputModel    = "i2v-02"
	Duration      = 6
	Resolution    = 768
	ServiceMode   = "public"
	maxBodyInErrs = 2048
)

// APIError is a non-2xx answer from PiAPI.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("piapi: status %d: %s", e.Status, e.Body)
}

func (e *APIError) StatusCode() int { return e.Status }

type Input struct {
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	ImageURL   string `json:"image_url"`
	Duration   int    `json:"duration"`
	Resolution int    `json:"resolution"`
}

type WebhookConfig struct {
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret,omitempty"`
}

type TaskConfig struct {
	ServiceMode   string        `json:"service_mode"`
	WebhookConfig WebhookConfig `json:"webhook_config"`
}

// TaskRequest is the body of POST /api/v1/task.
type TaskRequest struct {
	Model    string     `json:"model"`
	TaskType string     `json:"task_type"`
	Input    Input      `json:"input"`
	Config   TaskConfig `json:"config"`
}

// Job is what the caller knows about a video generation request.
type Job struct {
	Prompt      string
	ImageURL    string
	CallbackURL string
}

// Submission is PiAPI's acknowledgement of a created task.
type Submission struct {
	TaskID string
	Status string
}

type taskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	} `json:"data"`
}

type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	http          *http.Client
	policy        retry.Policy
	logger        *zap.Logger
}

type Options struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        opts.APIKey,
		webhookSecret: opts.WebhookSecret,
		http:          hc,
		policy:        retry.Default(),
		logger:        logger,
	}
	c.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		observability.ObserveAIAttempt(provider, "retry")
		c.logger.Warn("piapi returned a server error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return c
}

// WithPolicy replaces the retry policy, keeping the logging hook when p has none.
func (c *Client) WithPolicy(p retry.Policy) *Client {
	if p.OnRetry == nil {
		p.OnRetry = c.policy.OnRetry
	}
	c.policy = p
	return c
}

// NewTaskRequest builds the fixed-parameter Hailuo job body.
func NewTaskRequest(job Job, webhookSecret string) TaskRequest {
	return TaskRequest{
		Model:    Model,
		TaskType: TaskType,
		Input: Input{
			Model:      InputModel,
			Prompt:     job.Prompt,
			ImageURL:   job.ImageURL,
			Duration:   Duration,
			Resolution: Resolution,
		},
		Config: TaskConfig{
			ServiceMode: ServiceMode,
			WebhookConfig: WebhookConfig{
				Endpoint: job.CallbackURL,
				Secret:   webhookSecret,
			},
		},
	}
}

// Submit creates the task. Server errors are retried by the client's policy.
func (c *Client) Submit(ctx context.Context, job Job) (*Submission, error) {
	body, err := json.Marshal(NewTaskRequest(job, c.webhookSecret))
	if err != nil {
		return nil, err
	}

	ctx, done := observability.StartProviderCall(ctx, provider, "submit_task")
	sub, err := retry.DoValue(ctx, c.policy, func(ctx context.Context) (*Submission, error) {
		return c.post(ctx, body)
	})
	done(err)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*Submission, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/task", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piapi request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("piapi read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(raw)
		if len(msg) > maxBodyInErrs {
			msg = msg[:maxBodyInErrs]
		}
		return nil, &APIError{Status: resp.StatusCode, Body: msg}
	}

	var tr taskResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tr); err != nil {
			c.logger.Warn("piapi answered with a non-JSON body", zap.Error(err))
		}
	}
	c.logger.Info("hailuo task created",
		zap.String("provider_task_id", tr.Data.TaskID),
		zap.String("provider_status", tr.Data.Status),
	)
	return &Submission{TaskID: tr.Data.TaskID, Status: tr.Data.Status}, nil
}
