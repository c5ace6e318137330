package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/auth"
	"github.com/dedezza1D/lustra/internal/blob"
	"github.com/dedezza1D/lustra/internal/gemini"
	"github.com/dedezza1D/lustra/internal/observability"
	"github.com/dedezza1D/lustra/internal/payment"
	"github.com/dedezza1D/lustra/internal/store"
	"github.com/dedezza1D/lustra/internal/videotask"
)

// VideoService is the async task correlator.
type VideoService interface {
	Submit(ctx context.Context, req videotask.SubmitRequest) (*store.VideoTask, error)
	HandleCallback(ctx context.Context, id string, body []byte) (*store.VideoTask, bool, error)
	Get(ctx context.Context, id string) (*store.VideoTask, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, images []gemini.Image) ([]byte, error)
}

type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) error
}

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.User, error)
}

type Deployer interface {
	Deploy(ctx context.Context, uid string) (string, error)
}

// Deps are the collaborators built in main.
type Deps struct {
	Videos    VideoService
	Images    ImageGenerator
	Templates store.TemplateRepository
	Blobs     blob.Store
	Payments  PaymentGateway
	Auth      TokenVerifier
	Deployer  Deployer
	// Ready reports backing store health for /api/v1/ready. Optional.
	Ready func(ctx context.Context) error
}

type Config struct {
	Port               string
	WebhookSecret      string
	MaxUploadBytes     int64
	PublicDir          string
	CORSAllowedOrigins []string
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *zap.Logger
	cfg        Config
	deps       Deps
}

func NewServer(cfg Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}

	r := mux.NewRouter()

	routeName := func(r *http.Request) string {
		if rt := mux.CurrentRoute(r); rt != nil {
			if tpl, err := rt.GetPathTemplate(); err == nil && tpl != "" {
				return tpl
			}
		}
		return r.URL.Path
	}

	// Middlewares (order matters)
	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware(routeName))
	r.Use(observability.HTTPMetricsMiddleware(routeName))
	r.Use(observability.AccessLogMiddleware(logger, routeName))
	r.Use(observability.RecoverMiddleware(logger))

	srv := &Server{
		logger: logger,
		cfg:    cfg,
		deps:   deps,
	}

	// Metrics
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Health
	r.HandleFunc("/", srv.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/health", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/ready", srv.handleReady).Methods(http.MethodGet)

	// Templates
	r.HandleFunc("/templates", srv.handleListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/add-template", srv.handleAddTemplate).Methods(http.MethodPost)

	// Image generation
	r.HandleFunc("/upload_without_image", srv.requireAuth(srv.handleUploadWithoutImage)).Methods(http.MethodPost)
	r.HandleFunc("/upload", srv.requireAuth(srv.handleUpload)).Methods(http.MethodPost)

	// Video tasks
	r.HandleFunc("/generate-video", srv.requireAuth(srv.handleGenerateVideo)).Methods(http.MethodPost)
	r.HandleFunc("/webhook/{taskId}", srv.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/video-status/{taskId}", srv.requireAuth(srv.handleVideoStatus)).Methods(http.MethodGet)

	// Payments
	r.HandleFunc("/create_order", srv.handleCreateOrder).Methods(http.MethodPost)
	r.HandleFunc("/payment-verification", srv.handlePaymentVerification).Methods(http.MethodPost)
	r.HandleFunc("/checkout/{orderId}", srv.handleCheckout).Methods(http.MethodGet)

	// Website deployment
	r.HandleFunc("/deploy", srv.requireAuth(srv.handleDeploy)).Methods(http.MethodPost)

	// Local blob store files
	if cfg.PublicDir != "" {
		r.PathPrefix("/public/").Handler(
			http.StripPrefix("/public/", http.FileServer(http.Dir(cfg.PublicDir))),
		).Methods(http.MethodGet, http.MethodHead)
	}

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	srv.handler = c.Handler(r)

	srv.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler is the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
