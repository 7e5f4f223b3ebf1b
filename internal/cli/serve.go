package cli

import (
	"fmt"

	"resumegate/internal/ai"
	"resumegate/internal/config"
	"resumegate/internal/errors"
	"resumegate/internal/intake"
	"resumegate/internal/pdftext"
	"resumegate/internal/server"
	"resumegate/internal/spreadsheet"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for resume intake and sheet appends",
	Long: `Start an HTTP server that provides the resume intake and sheet append endpoints.

Available endpoints:
- POST /api/analyze-resume: Review an uploaded PDF resume (multipart, requires passkey)
- POST /api/sheets-append: Append a JSON record to the response sheet (CORS enabled)
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS is not terminated here; run behind a reverse proxy for HTTPS.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("allow-origin", "", "Access-Control-Allow-Origin for the sheet endpoint (overrides config)")
	serveCmd.Flags().String("passkey-file", "", "File holding the intake passkey, watched for changes (overrides config)")
	serveCmd.Flags().String("sheets-backend", "", "Sheet backend: google, xlsx, memory (overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	override := func(flag string, target *string) {
		if cmd.Flags().Changed(flag) {
			value, _ := cmd.Flags().GetString(flag)
			*target = value
		}
	}

	override("port", &cfg.Server.Port)
	override("host", &cfg.Server.Host)
	override("allow-origin", &cfg.Sheets.AllowOrigin)
	override("passkey-file", &cfg.Intake.PasskeyFile)
	override("sheets-backend", &cfg.Sheets.Backend)
}

// passkeyCleanup stops a passkey source's background work
type passkeyCleanup func()

// newPasskeySource picks the passkey source. A passkey file wins over a
// polled Vault secret, which wins over the static passkey.
func newPasskeySource(cfg *config.Config, logger *errors.Logger) (config.PasskeySource, passkeyCleanup, error) {
	if cfg.Intake.PasskeyFile != "" {
		pw, err := config.NewPasskeyWatcher(cfg.Intake.PasskeyFile, 0, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to watch passkey file: %w", err)
		}
		return pw, func() {
			if err := pw.Stop(); err != nil {
				logger.Warn("Failed to stop passkey watcher", "error", err)
			}
		}, nil
	}

	if cfg.Vault.Enabled && cfg.Vault.Secrets.Passkey != "" && cfg.Vault.PasskeyPollInterval > 0 {
		vw, err := config.StartVaultPasskeyWatcher(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start vault passkey watcher: %w", err)
		}
		return vw, func() {
			if err := vw.Stop(); err != nil {
				logger.Warn("Failed to stop vault passkey watcher", "error", err)
			}
		}, nil
	}

	return config.StaticPasskey(cfg.Intake.Passkey), func() {}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateSecrets(); err != nil {
		return fmt.Errorf("missing secrets: %w", err)
	}

	passkeys, stopPasskeys, err := newPasskeySource(cfg, logger)
	if err != nil {
		return err
	}
	defer stopPasskeys()

	store, err := spreadsheet.NewStore(cmd.Context(), &cfg.Sheets, logger)
	if err != nil {
		return fmt.Errorf("failed to open sheet backend: %w", err)
	}
	appender := spreadsheet.NewAppender(store, cfg.Sheets.SheetName, logger,
		spreadsheet.WithSheetRouting(cfg.Sheets.HonorSheetKey),
		spreadsheet.WithAllowedSheets(cfg.Sheets.AllowedSheets...))

	reviewAIConfig := cfg.GetReviewConfig()
	aiService, err := ai.NewService(&reviewAIConfig, "review", logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.Warn("Failed to close AI service", "error", err)
		}
	}()

	serverCfg := server.ServerConfig{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Version:   Version,
		Passkeys:  passkeys,
		Extractor: pdftext.NewExtractor(),
		Reviewer:  aiService,
		Intake: intake.Options{
			MaxFileSize:   cfg.Intake.MaxFileSize,
			MinTextLength: cfg.Intake.MinTextLength,
		},
		Appender:         appender,
		AllowOrigin:      cfg.Sheets.AllowOrigin,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		MaxRequestSize:   cfg.Intake.MaxRequestSize,
		MaxSheetBodySize: cfg.Sheets.MaxBodySize,
		RateLimit:        &cfg.Server.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, logger).Start(cmd.Context())
}
