package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shiva-rakshith/hcx-platform/internal/config"
	"github.com/shiva-rakshith/hcx-platform/internal/exchange"
	"github.com/shiva-rakshith/hcx-platform/internal/keystore"
	"github.com/shiva-rakshith/hcx-platform/internal/metrics"
	"github.com/shiva-rakshith/hcx-platform/internal/server"
	"github.com/shiva-rakshith/hcx-platform/pkg/broadcast"
	"github.com/shiva-rakshith/hcx-platform/pkg/claim"
	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
	"github.com/shiva-rakshith/hcx-platform/pkg/reliability"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
	"github.com/shiva-rakshith/hcx-platform/pkg/transport"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the participant node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := serve(ctx, cfg, logger); err != nil {
				logger.Error("server failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	keys, err := loadKeys(cfg, logger)
	if err != nil {
		return err
	}

	tmpl, err := loadTemplate(cfg, logger)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	hubOpts := []broadcast.Option{broadcast.WithLogger(logger.With("component", "broadcast"))}
	if cfg.Metrics.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Metrics.Runtime)
		hubOpts = append(hubOpts, broadcast.WithObserver(m))
	}

	hub := broadcast.NewHub(hubOpts...)
	defer hub.Close()

	tracker := reliability.NewTracker(cfg.Tracking.TTL, cfg.Tracking.DuplicateWindow)
	defer tracker.Stop()

	encryptor, err := newEncryptor(keys)
	if err != nil {
		return err
	}
	decryptor, err := security.NewDecryptor(keys.PrivateKey)
	if err != nil {
		return err
	}

	httpsConfig := transport.DefaultHTTPSConfig()
	httpsConfig.Timeout = cfg.Peer.Timeout
	client := transport.NewClient(cfg.Peer.BaseURL, httpsConfig,
		transport.WithAuthToken(cfg.Peer.AuthToken),
		transport.WithLogger(logger.With("component", "dispatcher")),
	)

	submitter, err := exchange.NewSubmitter(exchange.SubmitterConfig{
		Template: tmpl,
		Headers: protocol.NewHeaderBuilder(
			protocol.WithDefaultSender(cfg.Participant.SenderCode),
			protocol.WithDelay(cfg.DelayValue()),
		),
		Encryptor:        encryptor,
		Dispatcher:       client,
		SubmitPath:       cfg.SubmitPath(),
		DefaultRecipient: cfg.Participant.RecipientCode,
		Tracker:          tracker,
		Metrics:          m,
		Logger:           logger.With("component", "submitter"),
	})
	if err != nil {
		return err
	}

	callbacks, err := exchange.NewCallbackHandler(exchange.CallbackHandlerConfig{
		Decryptor: decryptor,
		Publisher: hub,
		Tracker:   tracker,
		Metrics:   m,
		Logger:    logger.With("component", "callbacks"),
	})
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Submitter: submitter,
		Callbacks: callbacks,
		Hub:       hub,
		Metrics:   m,
	}

	if cfg.Broadcast.Redis.Enabled {
		rdb, err := broadcast.Connect(ctx, cfg.Broadcast.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()

		relay := broadcast.NewRedisRelay(rdb, cfg.Broadcast.Redis.Channel, hub, logger)
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("redis relay stopped", "error", err)
			}
		}()
		deps.ReadyCheck = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		return err
	}

	logger.Info("node configured",
		"sender_code", cfg.Participant.SenderCode,
		"default_recipient", cfg.Participant.RecipientCode,
		"peer", client.BaseURL(),
		"submit_path", cfg.SubmitPath(),
		"callback_path", cfg.CallbackPath(),
		"template", tmpl.Source(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	published, dropped := hub.Stats()
	logger.Info("server stopped",
		"events_published", published,
		"events_dropped", dropped,
		"pending_submissions", tracker.Len(),
	)
	return nil
}

func loadKeys(cfg *config.Config, logger *slog.Logger) (*keystore.KeyMaterial, error) {
	var (
		keys *keystore.KeyMaterial
		err  error
	)
	if cfg.Keys.PrivateKeyFile != "" {
		keys, err = keystore.LoadFiles(keystore.Paths{
			PrivateKey:  cfg.Keys.PrivateKeyFile,
			Certificate: cfg.Keys.CertificateFile,
			Recipient:   cfg.Keys.RecipientCertFile,
			TrustedCAs:  cfg.Keys.TrustedCAFile,
		})
		if err != nil {
			return nil, fmt.Errorf("loading keys: %w", err)
		}
	} else {
		logger.Warn("generating ephemeral development key pair")
		keys, err = keystore.Generate(cfg.Participant.SenderCode, keystore.DefaultKeyBits, 0)
		if err != nil {
			return nil, fmt.Errorf("generating keys: %w", err)
		}
	}

	info := keys.Info()
	logger.Info("keys loaded",
		"algorithm", info.Algorithm,
		"key_size", info.KeySize,
		"subject", info.CertificateSubject,
		"not_after", info.NotAfter,
		"self_addressed", keys.SelfAddressed(),
	)
	if keys.SelfAddressed() {
		logger.Warn("no recipient certificate configured, envelopes are sealed for our own key")
	}
	return keys, nil
}

func loadTemplate(cfg *config.Config, logger *slog.Logger) (*claim.Template, error) {
	tmpl := claim.DefaultTemplate()
	if cfg.Participant.TemplateFile != "" {
		var err error
		if tmpl, err = claim.LoadTemplate(cfg.Participant.TemplateFile); err != nil {
			return nil, err
		}
	}
	for _, rt := range tmpl.MissingEntries() {
		logger.Warn("claim template has no entry for resource, its fields will not be set",
			"template", tmpl.Source(), "resource_type", rt)
	}
	return tmpl, nil
}

func newEncryptor(keys *keystore.KeyMaterial) (*security.Encryptor, error) {
	if keys.RecipientCertificate != nil {
		return security.NewEncryptorFromCertificate(keys.RecipientCertificate)
	}
	return security.NewEncryptor(keys.RecipientKey)
}
