// Package deploy builds the storefront web app and publishes it to Firebase Hosting.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dedezza1D/lustra/internal/observability"
	"github.com/dedezza1D/lustra/internal/store"
)

var ErrUserNotFound = errors.New("User document not found.")

// Step is one external command of the pipeline.
type Step struct {
	Name string
	Args []string
}

// DefaultSteps builds the website entrypoint and deploys hosting only.
var DefaultSteps = []Step{
	{Name: "flutter", Args: []string{"build", "web", "-t", "lib/website.dart"}},
	{Name: "firebase", Args: []string{"deploy", "--only", "hosting"}},
}

type Config struct {
	ProjectRoot string
	SiteURL     string
	Steps       []Step
}

// Pipeline runs one deployment at a time; the build shares a single working tree.
type Pipeline struct {
	runner Runner
	users  store.UserRepository
	cfg    Config
	logger *zap.Logger

	// slot holds one token; taking it admits a deployment.
	slot chan struct{}
}

func NewPipeline(runner Runner, users store.UserRepository, cfg Config, logger *zap.Logger) *Pipeline {
	if len(cfg.Steps) == 0 {
		cfg.Steps = DefaultSteps
	}
	return &Pipeline{
		runner: runner,
		users:  users,
		cfg:    cfg,
		logger: logger,
		slot:   make(chan struct{}, 1),
	}
}

// Deploy publishes the site and records the resulting URL on the user's profile.
func (p *Pipeline) Deploy(ctx context.Context, uid string) (string, error) {
	select {
	case p.slot <- struct{}{}:
		defer func() { <-p.slot }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	start := time.Now()
	websiteURL, err := p.deploy(ctx, uid)
	if err != nil {
		observability.DeploymentsTotal.WithLabelValues("error").Inc()
		p.logger.Error("deployment pipeline failed", zap.String("uid", uid), zap.Error(err))
		return "", err
	}

	observability.DeploymentsTotal.WithLabelValues("ok").Inc()
	p.logger.Info("deployment finished",
		zap.String("uid", uid),
		zap.String("website_url", websiteURL),
		zap.Duration("duration", time.Since(start)),
	)
	return websiteURL, nil
}

func (p *Pipeline) deploy(ctx context.Context, uid string) (string, error) {
	for _, step := range p.cfg.Steps {
		p.logger.Info("deploy step started", zap.String("cmd", step.Name), zap.Strings("args", step.Args))
		out, err := p.runner.Run(ctx, p.cfg.ProjectRoot, step.Name, step.Args...)
		if err != nil {
			return "", err
		}
		p.logger.Debug("deploy step output", zap.String("cmd", step.Name), zap.String("stdout", out))
	}

	user, err := p.users.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	websiteURL := BuildWebsiteURL(p.cfg.SiteURL, user.ShopName, user.LogoURL, uid)
	if err := p.users.MarkWebsiteCreated(ctx, uid, websiteURL); err != nil {
		return "", fmt.Errorf("update user: %w", err)
	}
	return websiteURL, nil
}

// BuildWebsiteURL appends shopName and logoUrl when present, and always userId.
func BuildWebsiteURL(site, shopName, logoURL, uid string) string {
	params := make([]string, 0, 3)
	if shopName != "" {
		params = append(params, "shopName="+escape(shopName))
	}
	if logoURL != "" {
		params = append(params, "logoUrl="+escape(logoURL))
	}
	params = append(params, "userId="+escape(uid))
	return site + "?" + strings.Join(params, "&")
}

// escape matches JavaScript's encodeURIComponent for the characters that matter here.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
