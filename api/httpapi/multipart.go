package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

var errNotMultipart = errors.New("Content-Type must be multipart/form-data")

type uploadedFile struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

type multipartForm struct {
	Fields map[string]string
	Files  []uploadedFile
}

// File returns the first file sent under field.
func (f *multipartForm) File(field string) (*uploadedFile, bool) {
	for i := range f.Files {
		if f.Files[i].Field == field {
			return &f.Files[i], true
		}
	}
	return nil, false
}

// FilesWithPrefix returns the files whose field name starts with prefix, in order.
func (f *multipartForm) FilesWithPrefix(prefix string) []uploadedFile {
	var out []uploadedFile
	for _, file := range f.Files {
		if strings.HasPrefix(file.Field, prefix) {
			out = append(out, file)
		}
	}
	return out
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// parseMultipart reads the whole form into memory. The body is capped at maxBytes.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipartForm, error) {
	if !isMultipart(r) {
		return nil, errNotMultipart
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	form := &multipartForm{Fields: map[string]string{}}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("read part %q: %w", part.FormName(), err)
		}

		if part.FileName() == "" {
			if _, dup := form.Fields[part.FormName()]; !dup {
				form.Fields[part.FormName()] = string(data)
			}
			continue
		}
		form.Files = append(form.Files, uploadedFile{
			Field:       part.FormName(),
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}
}
