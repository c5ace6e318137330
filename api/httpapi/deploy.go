package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/auth"
)

type deployResponse struct {
	Message    string `json:"message"`
	WebsiteURL string `json:"websiteUrl"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, auth.ErrNoToken.Error(), "")
		return
	}

	websiteURL, err := s.deps.Deployer.Deploy(r.Context(), user.UID)
	if err != nil {
		s.logger.Error("deploy failed", zap.String("uid", user.UID), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "Deployment failed: "+err.Error(), "")
		return
	}

	s.logger.Info("deploy succeeded", zap.String("uid", user.UID), zap.String("website_url", websiteURL))
	writeJSON(w, http.StatusOK, deployResponse{Message: "Deployment successful!", WebsiteURL: websiteURL})
}
