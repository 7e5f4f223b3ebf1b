package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.temperature", 0.7)

	// AI Configuration - Review operation defaults
	v.SetDefault("ai.review.provider", "gemini")
	v.SetDefault("ai.review.model", "")
	v.SetDefault("ai.review.timeout", 90*time.Second)
	v.SetDefault("ai.review.apiKey", "")
	v.SetDefault("ai.review.temperature", 0.2) // Low temperature for consistent grading
	v.SetDefault("ai.review.prompt", "")
	v.SetDefault("ai.review.promptFile", "")

	v.SetDefault("ai.review.circuitBreaker.enabled", true)
	v.SetDefault("ai.review.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.review.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.review.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.review.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.review.circuitBreaker.failureThreshold", 0.6)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 120*time.Second) // Reviews wait on the model
	v.SetDefault("server.idleTimeout", 120*time.Second)
	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})

	// Intake Configuration
	v.SetDefault("intake.passkey", "")
	v.SetDefault("intake.passkeyFile", "")
	v.SetDefault("intake.maxFileSize", 5*1024*1024) // 5 MiB
	v.SetDefault("intake.minTextLength", 100)
	v.SetDefault("intake.maxRequestSize", 10*1024*1024)

	// Sheets Configuration
	v.SetDefault("sheets.backend", "google")
	v.SetDefault("sheets.spreadsheetId", "")
	v.SetDefault("sheets.sheetName", "Sheet1")
	v.SetDefault("sheets.clientEmail", "")
	v.SetDefault("sheets.privateKey", "")
	v.SetDefault("sheets.credentialsFile", "")
	v.SetDefault("sheets.xlsxPath", "responses.xlsx")
	v.SetDefault("sheets.honorSheetKey", false)
	v.SetDefault("sheets.allowedSheets", []string{})
	v.SetDefault("sheets.allowOrigin", "*")
	v.SetDefault("sheets.maxBodySize", 1024*1024) // 1 MiB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.passkeyPollInterval", 0)
	v.SetDefault("vault.secrets.passkey", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.googleServiceAccount", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumegate")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.sampleRate", 1.0)

	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackContentSizes", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})

	v.SetDefault("observability.healthCheck.timeout", 10*time.Second)
}
