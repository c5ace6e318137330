package httpapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/store"
)

const (
	templateUploadPrefix = "uploads/"
	msgTemplateFields    = "Missing required template fields or image."
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	typ := strings.TrimSpace(r.URL.Query().Get("type"))

	templates, err := s.deps.Templates.ListTemplates(r.Context(), typ)
	if err != nil {
		s.logger.Error("list templates failed", zap.String("type", typ), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "Failed to fetch templates.", err.Error())
		return
	}
	if templates == nil {
		templates = []store.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleAddTemplate(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(w, r, s.cfg.MaxUploadBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, msgTemplateFields, err.Error())
		return
	}

	name := strings.TrimSpace(form.Fields["name"])
	prompt := strings.TrimSpace(form.Fields["prompt"])
	types := splitTypes(form.Fields["type"])
	img, ok := form.File("image")
	if name == "" || prompt == "" || len(types) == 0 || !ok || len(img.Data) == 0 {
		writeErr(w, http.StatusBadRequest, msgTemplateFields, "")
		return
	}

	now := time.Now()
	key := fmt.Sprintf("%s%d-%s", templateUploadPrefix, now.UnixMilli(), safeFilename(img.Filename))
	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	if err := s.deps.Blobs.Put(r.Context(), key, contentType, img.Data); err != nil {
		s.logger.Error("store template image failed", zap.String("key", key), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "Failed to save template.", err.Error())
		return
	}
	imageURL, err := s.deps.Blobs.URL(r.Context(), key, 0)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to save template.", err.Error())
		return
	}

	created, err := s.deps.Templates.CreateTemplate(r.Context(), store.Template{
		ID:       now.UnixMilli(),
		Name:     name,
		Type:     types,
		Prompt:   prompt,
		ImageURL: imageURL,
	})
	if err != nil {
		s.logger.Error("create template failed", zap.String("name", name), zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "Failed to save template.", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// splitTypes turns "festive, sale" into ["festive", "sale"].
func splitTypes(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "image"
	}
	return name
}
