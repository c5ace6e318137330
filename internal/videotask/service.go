// Package videotask correlates asynchronous video generation jobs with the provider
// callbacks that finish them.
package videotask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/blob"
	"github.com/dedezza1D/lustra/internal/events"
	"github.com/dedezza1D/lustra/internal/hailuo"
	"github.com/dedezza1D/lustra/internal/imageproc"
	"github.com/dedezza1D/lustra/internal/observability"
	"github.com/dedezza1D/lustra/internal/store"
)

const (
	// TaskIDPrefix marks ids minted by this service.
	TaskIDPrefix = "vid_"
	inputPrefix  = "video_inputs/"
)

var (
	ErrInvalidRequest = errors.New("Prompt and image are required.")
	ErrInvalidImage   = errors.New("The uploaded image could not be processed.")
	// ErrSubmitFailed wraps every failure after the task record exists.
	ErrSubmitFailed = errors.New("Error starting video generation task.")
)

// Provider starts a video job that will later be reported on the callback URL.
type Provider interface {
	Submit(ctx context.Context, job hailuo.Job) (*hailuo.Submission, error)
}

type Config struct {
	// PublicBaseURL is the externally reachable origin used for callback URLs.
	PublicBaseURL string
	// InputURLTTL is how long the provider may fetch the input image.
	InputURLTTL time.Duration
}

type Service struct {
	repo     store.TaskRepository
	blobs    blob.Store
	provider Provider
	events   events.Publisher
	cfg      Config
	logger   *zap.Logger

	newID func() (string, error)
	now   func() time.Time
}

func NewService(repo store.TaskRepository, blobs blob.Store, provider Provider, pub events.Publisher, cfg Config, logger *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Service{
		repo:     repo,
		blobs:    blobs,
		provider: provider,
		events:   pub,
		cfg:      cfg,
		logger:   logger,
		newID:    NewTaskID,
		now:      time.Now,
	}
}

// NewTaskID returns vid_ followed by a time-ordered UUIDv7.
func NewTaskID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return TaskIDPrefix + id.String(), nil
}

type SubmitRequest struct {
	Prompt string
	Image  []byte
}

// Submit validates the request, publishes the prepared image, records a processing task
// and hands the job to the provider. When the provider rejects the job the task is
// marked failed before the error is returned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.VideoTask, error) {
	if strings.TrimSpace(req.Prompt) == "" || len(req.Image) == 0 {
		return nil, ErrInvalidRequest
	}

	img, err := imageproc.PrepareVideoInput(req.Image)
	if err != nil {
		observability.VideoTaskSubmitFailuresTotal.WithLabelValues("image").Inc()
		s.logger.Warn("video input rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	key := inputPrefix + "vid_input_" + uuid.NewString() + ".jpg"
	if err := s.blobs.Put(ctx, key, "image/jpeg", img); err != nil {
		observability.VideoTaskSubmitFailuresTotal.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("store video input: %w", err)
	}
	imageURL, err := s.blobs.URL(ctx, key, s.cfg.InputURLTTL)
	if err != nil {
		observability.VideoTaskSubmitFailuresTotal.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("video input url: %w", err)
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}

	task, err := s.repo.CreateTask(ctx, id)
	if err != nil {
		observability.VideoTaskSubmitFailuresTotal.WithLabelValues("persist").Inc()
		return nil, fmt.Errorf("create task: %w", err)
	}

	sub, err := s.provider.Submit(ctx, hailuo.Job{
		Prompt:      req.Prompt,
		ImageURL:    imageURL,
		CallbackURL: s.CallbackURL(id),
	})
	if err != nil {
		observability.VideoTaskSubmitFailuresTotal.WithLabelValues("provider").Inc()
		s.markFailed(ctx, id, err)
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	if sub != nil && sub.TaskID != "" {
		if err := s.repo.SetProviderTaskID(ctx, id, sub.TaskID); err != nil {
			s.logger.Warn("record provider task id failed", zap.String("task_id", id), zap.Error(err))
		} else {
			task.ProviderTaskID = sub.TaskID
		}
	}

	observability.VideoTasksSubmittedTotal.Inc()
	s.logger.Info("video task submitted",
		zap.String("task_id", id),
		zap.String("provider_task_id", task.ProviderTaskID),
	)
	s.publish(ctx, events.KindSubmitted, task)
	return task, nil
}

// markFailed survives cancellation of the request that triggered it.
func (s *Service) markFailed(ctx context.Context, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.MarkTaskFailed(ctx, id, cause.Error()); err != nil {
		s.logger.Error("mark task failed", zap.String("task_id", id), zap.Error(err))
		return
	}
	s.logger.Warn("video task failed at submission", zap.String("task_id", id), zap.Error(cause))

	if task, err := s.repo.GetTask(ctx, id); err == nil {
		s.publish(ctx, events.KindFailed, task)
	}
}

// CallbackURL is where the provider reports progress for id.
func (s *Service) CallbackURL(id string) string {
	return s.cfg.PublicBaseURL + "/webhook/" + url.PathEscape(id)
}

// HandleCallback records a provider callback; the whole body becomes the result. Bodies
// that are not JSON objects are kept as the result with status unknown.
func (s *Service) HandleCallback(ctx context.Context, id string, body []byte) (*store.VideoTask, bool, error) {
	status, result := ParseCallback(body)

	task, applied, err := s.repo.UpsertTask(ctx, id, status, result)
	if err != nil {
		return nil, false, fmt.Errorf("upsert task: %w", err)
	}

	observability.ObserveCallback(string(status), applied)
	if !applied {
		s.logger.Info("callback for finished task ignored",
			zap.String("task_id", id),
			zap.String("status", string(status)),
			zap.String("current_status", string(task.Status)),
		)
		return task, false, nil
	}

	s.logger.Info("video task updated", zap.String("task_id", id), zap.String("status", string(status)))
	s.publish(ctx, events.KindCallback, task)
	return task, true, nil
}

// ParseCallback extracts the normalized status and the result document from a body.
// The top-level status field wins; PiAPI's data.status is used when it is absent.
func ParseCallback(body []byte) (store.TaskStatus, json.RawMessage) {
	trimmed := []byte(strings.TrimSpace(string(body)))
	if len(trimmed) == 0 {
		return store.StatusUnknown, nil
	}
	if !json.Valid(trimmed) {
		b, _ := json.Marshal(string(body))
		return store.StatusUnknown, b
	}

	var envelope struct {
		Status any             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return store.StatusUnknown, trimmed
	}
	if s, ok := envelope.Status.(string); ok {
		return store.NormalizeStatus(s), trimmed
	}
	if envelope.Status == nil && len(envelope.Data) > 0 {
		var data struct {
			Status any `json:"status"`
		}
		if err := json.Unmarshal(envelope.Data, &data); err == nil {
			if s, ok := data.Status.(string); ok {
				return store.NormalizeStatus(s), trimmed
			}
		}
	}
	return store.StatusUnknown, trimmed
}

// Get returns the task or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*store.VideoTask, error) {
	return s.repo.GetTask(ctx, id)
}

func (s *Service) publish(ctx context.Context, kind events.Kind, task *store.VideoTask) {
	ev := events.TaskEvent{
		TaskID:         task.ID,
		Status:         task.Status,
		ProviderTaskID: task.ProviderTaskID,
		Error:          task.Error,
		At:             s.now().UTC(),
	}
	if err := s.events.Publish(ctx, kind, ev); err != nil {
		s.logger.Warn("publish task event failed",
			zap.String("task_id", task.ID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
