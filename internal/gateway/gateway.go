// ABOUTME: Main gateway orchestrator wiring stores, pipeline stages and the chat transport
// ABOUTME: Owns the HTTP server (health, OAuth callback), optional tsnet listener and lifecycle

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/ally-gateway/internal/assistant"
	"github.com/2389/ally-gateway/internal/config"
	"github.com/2389/ally-gateway/internal/credential"
	"github.com/2389/ally-gateway/internal/identity"
	"github.com/2389/ally-gateway/internal/kv"
	"github.com/2389/ally-gateway/internal/matrix"
	"github.com/2389/ally-gateway/internal/otp"
	"github.com/2389/ally-gateway/internal/pipeline"
	"github.com/2389/ally-gateway/internal/ratelimit"
	"github.com/2389/ally-gateway/internal/session"
	"github.com/2389/ally-gateway/internal/store"
)

// chatTransport is a pipeline.Transport that also drives inbound updates.
type chatTransport interface {
	pipeline.Transport
	Run(ctx context.Context, h matrix.UpdateHandler) error
}

// Gateway orchestrates the ally-gateway components.
// It runs the chat transport into the pipeline and serves the HTTP endpoints.
type Gateway struct {
	config      *config.Config
	store       store.Store
	kv          kv.Store
	pipeline    *pipeline.Pipeline
	transport   chatTransport
	connector   *credential.Connector
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// initKV selects Redis when configured, the in-memory store otherwise.
func initKV(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Store, error) {
	kvLogger := logger.With("component", "kv")
	if cfg.Redis.Addr == "" {
		kvLogger.Warn("redis.addr not set, using in-memory store; sessions will not survive restarts")
		return kv.NewMemoryStore(), nil
	}
	return kv.NewRedisStore(ctx, kv.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, kvLogger)
}

// initMailer picks SMTP delivery or the development log mailer.
func initMailer(cfg *config.Config, logger *slog.Logger) otp.Mailer {
	if cfg.OTP.SMTP.Host == "" {
		logger.Warn("otp.smtp.host not set, passcodes will be logged instead of mailed")
		return otp.NewLogMailer(logger.With("component", "mailer"))
	}
	return otp.NewSMTPMailer(otp.SMTPConfig{
		Host:     cfg.OTP.SMTP.Host,
		Port:     cfg.OTP.SMTP.Port,
		Username: cfg.OTP.SMTP.Username,
		Password: cfg.OTP.SMTP.Password,
		From:     cfg.OTP.From,
	})
}

// New creates a Gateway from cfg, connecting to Redis and opening the database.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	kvStore, err := initKV(ctx, cfg, logger)
	if err != nil {
		_ = sqlStore.Close()
		return nil, fmt.Errorf("creating kv store: %w", err)
	}

	transport, err := matrix.NewTransport(&cfg.Matrix, logger)
	if err != nil {
		_ = kvStore.Close()
		_ = sqlStore.Close()
		return nil, err
	}

	gw, err := assemble(cfg, sqlStore, kvStore, transport, nil, logger)
	if err != nil {
		_ = kvStore.Close()
		_ = sqlStore.Close()
		return nil, err
	}
	return gw, nil
}

// assemble wires the pipeline and HTTP routes around already-open backends.
// A nil provider selects Google.
func assemble(cfg *config.Config, st store.Store, kvStore kv.Store, transport chatTransport, provider credential.Provider, logger *slog.Logger) (*Gateway, error) {
	if provider == nil {
		google, err := credential.NewGoogleProvider(credential.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       cfg.Google.Scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("creating google provider: %w", err)
		}
		provider = google
	}
	states := credential.NewStateSigner([]byte(cfg.Google.StateSecret), credential.DefaultStateTTL)

	authLimiter := ratelimit.New(ratelimit.Config{
		MaxAttempts: cfg.RateLimits.Auth.MaxAttempts,
		Window:      cfg.RateLimits.Auth.Window,
		KeyPrefix:   ratelimit.Auth.KeyPrefix,
	}, kvStore, logger)
	messageLimiter := ratelimit.New(ratelimit.Config{
		MaxAttempts: cfg.RateLimits.Message.MaxAttempts,
		Window:      cfg.RateLimits.Message.Window,
		KeyPrefix:   ratelimit.Message.KeyPrefix,
	}, kvStore, logger)

	otpService := otp.NewService(otp.Config{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, kvStore, st, initMailer(cfg, logger), logger)

	p, err := pipeline.New(pipeline.Options{
		Sessions:          session.NewStore(kvStore, cfg.Session.TTL, logger),
		Transport:         transport,
		Handler:           assistant.NewHandler(assistant.NewClient(cfg.Agent.URL, cfg.Agent.Timeout), cfg.Session.BusyTimeout, logger),
		AuthLimiter:       authLimiter,
		MessageLimiter:    messageLimiter,
		Identity:          identity.NewStage(otpService, st, authLimiter, logger),
		Credential:        credential.NewStage(st, provider, states, logger),
		StaleAfter:        cfg.Session.StaleAfter,
		InactivityTimeout: cfg.Session.InactivityTimeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		store:     st,
		kv:        kvStore,
		pipeline:  p,
		transport: transport,
		connector: credential.NewConnector(st, provider, states, logger),
		logger:    logger.With("component", "gateway"),
	}
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("pipeline ready", "stages", p.StageNames())
	return gw, nil
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server and the chat transport and blocks until the
// context is canceled or either fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	transportDone := make(chan struct{})
	go func() {
		defer close(transportDone)
		if err := g.transport.Run(runCtx, g.pipeline); err != nil {
			errCh <- fmt.Errorf("chat transport: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	cancel()
	<-transportDone

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The run context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ally-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens for HTTP there.
// With funnel enabled the OAuth callback becomes publicly reachable.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	}

	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "kv close", g.kv.Close())
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
