package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/gemini"
	"github.com/dedezza1D/lustra/internal/imageproc"
)

const (
	msgPromptRequired = "A prompt is required."
	msgImagesRequired = "At least one image and a prompt are required."
)

type promptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type uploadRequest struct {
	Prompt     string   `json:"prompt" validate:"required"`
	Images     []string `json:"imgBase64" validate:"required,min=1,dive,required"`
	LogoBase64 string   `json:"logoBase64"`
}

type generatedImageResponse struct {
	GeneratedImage string `json:"generatedImage"`
}

func (s *Server) handleUploadWithoutImage(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := s.decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		writeErr(w, http.StatusBadRequest, msgPromptRequired, "")
		return
	}
	s.generate(w, r, req.Prompt, nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var (
		prompt string
		raw    [][]byte
		logo   []byte
	)

	if isMultipart(r) {
		form, err := parseMultipart(w, r, s.cfg.MaxUploadBytes)
		if err != nil {
			writeErr(w, http.StatusBadRequest, msgImagesRequired, err.Error())
			return
		}
		prompt = form.Fields["prompt"]
		for _, f := range form.FilesWithPrefix("image_") {
			raw = append(raw, f.Data)
		}
		if f, ok := form.File("logo_image"); ok {
			logo = f.Data
		}
	} else {
		var req uploadRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			writeErr(w, http.StatusBadRequest, msgImagesRequired, "")
			return
		}
		prompt = req.Prompt
		for _, b64 := range req.Images {
			data, err := decodeBase64Image(b64)
			if err != nil {
				writeErr(w, http.StatusBadRequest, msgImagesRequired, err.Error())
				return
			}
			raw = append(raw, data)
		}
		if req.LogoBase64 != "" {
			data, err := decodeBase64Image(req.LogoBase64)
			if err != nil {
				writeErr(w, http.StatusBadRequest, msgImagesRequired, err.Error())
				return
			}
			logo = data
		}
	}

	if strings.TrimSpace(prompt) == "" || len(raw) == 0 {
		writeErr(w, http.StatusBadRequest, msgImagesRequired, "")
		return
	}

	images := make([]gemini.Image, 0, len(raw)+1)
	for _, data := range raw {
		img, err := toJPEGImage(data)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "The uploaded image could not be processed.", err.Error())
			return
		}
		images = append(images, img)
	}
	if logo != nil {
		img, err := toJPEGImage(logo)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "The uploaded image could not be processed.", err.Error())
			return
		}
		images = append(images, img)
		prompt += gemini.LogoInstruction
	}

	s.generate(w, r, prompt, images)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, prompt string, images []gemini.Image) {
	out, err := s.deps.Images.GenerateImage(r.Context(), prompt, images)
	if err != nil {
		s.logger.Error("image generation failed", zap.Int("inputs", len(images)), zap.Error(err))
		switch {
		case errors.Is(err, gemini.ErrInvalidAPIKey), errors.Is(err, gemini.ErrNoImage):
			writeErr(w, gemini.HTTPStatus(err), err.Error(), "")
		default:
			writeErr(w, gemini.HTTPStatus(err), "Error generating image with Gemini: "+err.Error(), "")
		}
		return
	}

	writeJSON(w, http.StatusOK, generatedImageResponse{
		GeneratedImage: base64.StdEncoding.EncodeToString(out),
	})
}

func toJPEGImage(data []byte) (gemini.Image, error) {
	jpg, err := imageproc.ToJPEG(data)
	if err != nil {
		return gemini.Image{}, err
	}
	return gemini.Image{Data: jpg, MIMEType: "image/jpeg"}, nil
}

// decodeBase64Image accepts bare base64 or a data: URL.
func decodeBase64Image(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
