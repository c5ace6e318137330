// Package gemini generates images with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/dedezza1D/lustra/internal/observability"
	"github.com/dedezza1D/lustra/internal/retry"
)

const provider = "gemini"

// LogoInstruction is appended to the prompt when the last input image is a brand logo.
const LogoInstruction = " The last image provided is a logo; please place it tastefully onto the final generated image as a watermark or branding element."

var (
	// ErrNoImage means the model answered without inline image data.
	ErrNoImage = errors.New("No image data found in the response from the AI.")
	// ErrInvalidAPIKey means the configured key was rejected.
	ErrInvalidAPIKey = errors.New("The configured GEMINI_API_KEY is invalid. Please check your configuration.")
)

// APIError is an upstream failure with its HTTP status.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini: status %d", e.Code)
	}
	return e.Message
}

func (e *APIError) StatusCode() int { return e.Code }

// ContentGenerator is the slice of the genai client this package uses. *genai.Models
// satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Image is one input picture.
type Image struct {
	Data     []byte
	MIMEType string
}

type Client struct {
	models ContentGenerator
	model  string
	policy retry.Policy
	logger *zap.Logger
}

// NewClient builds a Gemini API client for the given key.
func NewClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewWithGenerator(gc.Models, model, logger), nil
}

// NewWithGenerator wires an arbitrary generator; tests pass a fake.
func NewWithGenerator(models ContentGenerator, model string, logger *zap.Logger) *Client {
	c := &Client{
		models: models,
		model:  model,
		policy: retry.Default(),
		logger: logger,
	}
	c.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		observability.ObserveAIAttempt(provider, "retry")
		c.logger.Warn("gemini returned a server error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return c
}

// WithPolicy replaces the retry policy.
func (c *Client) WithPolicy(p retry.Policy) *Client {
	hook := c.policy.OnRetry
	if p.OnRetry == nil {
		p.OnRetry = hook
	}
	c.policy = p
	return c
}

// GenerateImage sends the prompt followed by the images and returns the first inline image
// of the answer.
func (c *Client) GenerateImage(ctx context.Context, prompt string, images []Image) ([]byte, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	parts = append(parts, genai.NewPartFromText(prompt))
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	ctx, done := observability.StartProviderCall(ctx, provider, "generate_image")
	resp, err := retry.DoValue(ctx, c.policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	})
	done(err)
	if err != nil {
		return nil, err
	}

	data, text := firstImage(resp)
	if data == nil {
		c.logger.Error("no image data in gemini response", zap.String("text", text))
		return nil, ErrNoImage
	}
	return data, nil
}

func firstImage(resp *genai.GenerateContentResponse) ([]byte, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	var text string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data, ""
		}
		if p.Text != "" && text == "" {
			text = p.Text
		}
	}
	return nil, text
}

// classify maps SDK errors onto APIError and ErrInvalidAPIKey.
func classify(err error) error {
	var ae genai.APIError
	if !errors.As(err, &ae) {
		return err
	}

	if isInvalidKey(ae.Message) {
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, ae.Message)
	}
	return &APIError{Code: ae.Code, Message: ae.Message}
}

func isInvalidKey(msg string) bool {
	return strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API key is invalid")
}

// HTTPStatus maps an error from GenerateImage onto the status the API answers with.
func HTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidAPIKey) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
