package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// legacyEnv maps environment variables used by earlier deployments onto
// config fields. They only apply when the field is still empty.
var legacyEnv = []struct {
	name   string
	target func(c *Config) *string
}{
	{"RESUME_PASSKEY", func(c *Config) *string { return &c.Intake.Passkey }},
	{"GEMINI_API_KEY", func(c *Config) *string { return &c.AI.APIKey }},
	{"GOOGLE_CLIENT_EMAIL", func(c *Config) *string { return &c.Sheets.ClientEmail }},
	{"GOOGLE_PRIVATE_KEY", func(c *Config) *string { return &c.Sheets.PrivateKey }},
	{"SHEET_ID", func(c *Config) *string { return &c.Sheets.SpreadsheetID }},
	{"SHEET_NAME", func(c *Config) *string { return &c.Sheets.SheetName }},
	{"ALLOW_ORIGIN", func(c *Config) *string { return &c.Sheets.AllowOrigin }},
}

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyLegacyEnv()
	c.Sheets.PrivateKey = NormalizePrivateKey(c.Sheets.PrivateKey)
	c.applyObservabilityDefaults()
}

func (c *Config) applyLegacyEnv() {
	for _, e := range legacyEnv {
		value := os.Getenv(e.name)
		if value == "" {
			continue
		}
		target := e.target(c)
		// SHEET_NAME and ALLOW_ORIGIN carry non-empty defaults; treat those as unset.
		if *target == "" || (e.name == "SHEET_NAME" && *target == "Sheet1") || (e.name == "ALLOW_ORIGIN" && *target == "*") {
			*target = value
		}
	}
}

// NormalizePrivateKey turns literal "\n" sequences into newlines. Keys passed
// through a single-line environment variable arrive escaped.
func NormalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

func isSensitiveEnv(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "passkey") || strings.Contains(lower, "token")
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"RESUMEGATE_AI_APIKEY",
		"RESUMEGATE_AI_MODEL",
		"RESUMEGATE_SERVER_PORT",
		"RESUMEGATE_SERVER_HOST",
		"RESUMEGATE_APP_LOGLEVEL",
		"RESUMEGATE_APP_ENVIRONMENT",
		"RESUMEGATE_INTAKE_PASSKEY",
		"RESUMEGATE_SHEETS_BACKEND",
		"RESUMEGATE_SHEETS_SPREADSHEETID",
		"RESUMEGATE_VAULT_ENABLED",
	}
	for _, e := range legacyEnv {
		envVars = append(envVars, e.name)
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveEnv(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] AI Provider: %s", c.AI.Provider)
	log.Printf("[CONFIG] AI Model: %s", c.AI.Model)
	log.Printf("[CONFIG] AI API Key: %s", configuredMarker(c.AI.APIKey != ""))
	log.Printf("[CONFIG] Intake Passkey: %s", configuredMarker(c.Intake.Passkey != "" || c.Intake.PasskeyFile != ""))
	log.Printf("[CONFIG] Sheets Backend: %s", c.Sheets.Backend)
	log.Printf("[CONFIG] Sheets Default Tab: %s", c.Sheets.SheetName)
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Environment: %s", c.App.Environment)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func configuredMarker(ok bool) string {
	if ok {
		return "***CONFIGURED***"
	}
	return "***NOT SET***"
}
