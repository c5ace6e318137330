package httpapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/store"
	"github.com/dedezza1D/lustra/internal/videotask"
)

const webhookSecretHeader = "X-Webhook-Secret"

type generateVideoResponse struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, s.cfg.MaxUploadBytes)
	if err != nil {
		if isTooLarge(err) {
			writeErr(w, http.StatusRequestEntityTooLarge, "upload too large", err.Error())
			return
		}
		writeErr(w, http.StatusBadRequest, errNotMultipart.Error(), err.Error())
		return
	}

	req := videotask.SubmitRequest{Prompt: form.Fields["prompt"]}
	if img, ok := form.File("image"); ok {
		req.Image = img.Data
	} else if len(form.Files) > 0 {
		req.Image = form.Files[0].Data
	}

	task, err := s.deps.Videos.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, videotask.ErrInvalidRequest):
			writeErr(w, http.StatusBadRequest, videotask.ErrInvalidRequest.Error(), "")
		case errors.Is(err, videotask.ErrInvalidImage):
			writeErr(w, http.StatusBadRequest, videotask.ErrInvalidImage.Error(), err.Error())
		default:
			s.logger.Error("generate video failed", zap.Error(err))
			writeErr(w, http.StatusInternalServerError, videotask.ErrSubmitFailed.Error(), err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, generateVideoResponse{TaskID: task.ID})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	if s.cfg.WebhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) != 1 {
			s.logger.Warn("webhook rejected: bad secret", zap.String("task_id", taskID))
			writeErr(w, http.StatusUnauthorized, "Invalid webhook secret.", "")
			return
		}
	}

	// Unreadable or oversized callbacks are acknowledged and leave the task untouched.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		s.logger.Warn("webhook body dropped",
			zap.String("task_id", taskID),
			zap.Bool("too_large", isTooLarge(err)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook received"})
		return
	}

	task, applied, err := s.deps.Videos.HandleCallback(r.Context(), taskID, body)
	if err != nil {
		// Store failures are logged and still acknowledged.
		s.logger.Error("webhook store update failed", zap.String("task_id", taskID), zap.Error(err))
	} else {
		s.logger.Info("webhook received",
			zap.String("task_id", taskID),
			zap.String("status", string(task.Status)),
			zap.Bool("applied", applied),
		)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook received"})
}

func (s *Server) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["taskId"]

	task, err := s.deps.Videos.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "Task not found.", "")
			return
		}
		s.logger.Error("get video task failed", zap.String("task_id", taskID), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "failed to get task", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, task)
}
