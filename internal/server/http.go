package server

import (
	"context"
	"time"

	"resumegate/internal/ai"
	"resumegate/internal/config"
	resumegateErrors "resumegate/internal/errors"
	"resumegate/internal/intake"
	"resumegate/internal/spreadsheet"
	"resumegate/internal/types"
)

// ErrorResponse is the body of every failed resume intake request
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

// AnalyzeResponse is the body of a successful resume intake request
type AnalyzeResponse struct {
	Success bool               `json:"success"`
	Form    types.ResumeReview `json:"form"`
	Message string             `json:"message"`
}

// SheetResponse is the body of every sheet append response
type SheetResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ReviewService is the completion side of resume intake
type ReviewService interface {
	ReviewResumeWithUsage(ctx context.Context, resumeText string) (types.ResumeReview, *ai.TokenUsage, error)
	GetModelInfo(ctx context.Context) *ai.ModelInfo
	CircuitBreakerStats() map[string]any
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// Resume intake
	Passkeys  config.PasskeySource
	Extractor intake.TextExtractor
	Reviewer  ReviewService
	Intake    intake.Options

	// Sheet append
	Appender    *spreadsheet.Appender
	AllowOrigin string

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limits
	MaxRequestSize   int64
	MaxSheetBodySize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Logger
	Logger *resumegateErrors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host             string
	Port             string
	Version          string
	Passkeys         config.PasskeySource
	Extractor        intake.TextExtractor
	Reviewer         ReviewService
	Intake           intake.Options
	Appender         *spreadsheet.Appender
	AllowOrigin      string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxRequestSize   int64
	MaxSheetBodySize int64
	RateLimit        *config.RateLimitConfig
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *resumegateErrors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	allowOrigin := cfg.AllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}

	return &Server{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Version:          cfg.Version,
		AppConfig:        appCfg,
		Passkeys:         cfg.Passkeys,
		Extractor:        cfg.Extractor,
		Reviewer:         cfg.Reviewer,
		Intake:           cfg.Intake,
		Appender:         cfg.Appender,
		AllowOrigin:      allowOrigin,
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		IdleTimeout:      cfg.IdleTimeout,
		MaxRequestSize:   cfg.MaxRequestSize,
		MaxSheetBodySize: cfg.MaxSheetBodySize,
		RateLimit:        cfg.RateLimit,
		RateLimiter:      rateLimiter,
		Logger:           logger,
	}
}
