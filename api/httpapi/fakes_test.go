package httpapi

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dedezza1D/lustra/internal/auth"
	"github.com/dedezza1D/lustra/internal/blob"
	"github.com/dedezza1D/lustra/internal/gemini"
	"github.com/dedezza1D/lustra/internal/hailuo"
	"github.com/dedezza1D/lustra/internal/payment"
	"github.com/dedezza1D/lustra/internal/store"
	"github.com/dedezza1D/lustra/internal/videotask"
)

const (
	testToken = "good-token"
	testUID   = "uid-1"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, raw string) (*auth.User, error) {
	if raw != testToken {
		return nil, auth.ErrInvalidToken
	}
	return &auth.User{UID: testUID, Email: "owner@lustra.test"}, nil
}

type fakeProvider struct {
	mu   sync.Mutex
	jobs []hailuo.Job
	err  error
}

func (p *fakeProvider) Submit(_ context.Context, job hailuo.Job) (*hailuo.Submission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	if p.err != nil {
		return nil, p.err
	}
	return &hailuo.Submission{TaskID: "pi-task-1", Status: "pending"}, nil
}

type fakeImages struct {
	prompt string
	images []gemini.Image
	out    []byte
	err    error
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string, images []gemini.Image) ([]byte, error) {
	f.prompt = prompt
	f.images = images
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fakePayments struct {
	*payment.Client
	req   payment.OrderRequest
	order *payment.Order
	err   error
}

func (f *fakePayments) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.Order, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fakeDeployer struct {
	uid string
	url string
	err error
}

func (f *fakeDeployer) Deploy(_ context.Context, uid string) (string, error) {
	f.uid = uid
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type testEnv struct {
	srv       *Server
	tasks     *store.MemoryTaskRepository
	templates *store.FileTemplateRepository
	provider  *fakeProvider
	images    *fakeImages
	payments  *fakePayments
	deployer  *fakeDeployer
	publicDir string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	publicDir := t.TempDir()
	blobs, err := blob.NewLocalStore(publicDir, "https://api.lustra.test")
	require.NoError(t, err)

	env := &testEnv{
		tasks:     store.NewMemoryTaskRepository(),
		templates: store.NewFileTemplateRepository(t.TempDir() + "/templates.json"),
		provider:  &fakeProvider{},
		images:    &fakeImages{out: []byte("generated")},
		payments: &fakePayments{
			Client: payment.NewClient("http://127.0.0.1:0", "rzp_test_key", "key_secret", nil),
			order:  &payment.Order{ID: "order_1", Amount: 49900, Currency: "INR"},
		},
		deployer:  &fakeDeployer{url: "https://site.lustra.test?userId=uid-1"},
		publicDir: publicDir,
	}

	videos := videotask.NewService(env.tasks, blobs, env.provider, nil, videotask.Config{
		PublicBaseURL: "https://api.lustra.test",
		InputURLTTL:   0,
	}, logger)

	if cfg.PublicDir == "" {
		cfg.PublicDir = publicDir
	}
	env.srv = NewServer(cfg, logger, Deps{
		Videos:    videos,
		Images:    env.images,
		Templates: env.templates,
		Blobs:     blobs,
		Payments:  env.payments,
		Auth:      fakeVerifier{},
		Deployer:  env.deployer,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{10, 120, 200, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
