package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dedezza1D/lustra/internal/store"
)

func addTemplate(t *testing.T, env *testEnv, fields map[string]string, withImage bool) *httptest.ResponseRecorder {
	t.Helper()
	var files []formFile
	if withImage {
		files = append(files, formFile{field: "image", name: "../Sale Banner.png", data: pngBytes(t, 16, 16)})
	}
	body, ct := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/add-template", body)
	req.Header.Set("Content-Type", ct)
	return env.do(req)
}

func TestTemplates_AddThenList(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = addTemplate(t, env, map[string]string{
		"name":   "Sale",
		"type":   "festive, sale",
		"prompt": "bright sale banner",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created store.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Positive(t, created.ID)
	assert.Equal(t, []string{"festive", "sale"}, created.Type)
	require.True(t, strings.HasPrefix(created.ImageURL, "https://api.lustra.test/public/uploads/"))
	assert.True(t, strings.HasSuffix(created.ImageURL, "-Sale_Banner.png"))

	key := strings.TrimPrefix(created.ImageURL, "https://api.lustra.test/public/")
	_, err := os.Stat(filepath.Join(env.publicDir, filepath.FromSlash(key)))
	assert.NoError(t, err)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/templates?type=sale", nil))
	var list []store.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/templates?type=wedding", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestTemplates_AddMissingFields(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := addTemplate(t, env, map[string]string{"name": "Sale", "type": "sale", "prompt": "p"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing required template fields or image.")

	rec = addTemplate(t, env, map[string]string{"name": "Sale", "type": " , ", "prompt": "p"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitTypesAndSafeFilename(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTypes(" a,,b ,"))
	assert.Nil(t, splitTypes(""))

	assert.Equal(t, "passwd", safeFilename("../../etc/passwd"))
	assert.Equal(t, "my_logo.png", safeFilename(`C:\Users\me\my logo.png`))
	assert.Equal(t, "image", safeFilename(""))
}
