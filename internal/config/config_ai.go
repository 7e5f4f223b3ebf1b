package config

import (
	"fmt"
	"os"
	"strings"
)

// maxPromptFileSize bounds prompt files read from disk.
const maxPromptFileSize = 256 * 1024

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
}

// GetReviewConfig returns the AI configuration for resume reviews with fallback to global config
func (c *Config) GetReviewConfig() OperationAIConfig {
	config := c.AI.Review
	c.applyOperationDefaults(&config)
	return config
}

// ResolvePrompt returns the operation's prompt override: the inline prompt
// when set, otherwise the content of PromptFile. An empty result means the
// built-in prompt should be used.
func (o OperationAIConfig) ResolvePrompt() (string, error) {
	if strings.TrimSpace(o.Prompt) != "" {
		return o.Prompt, nil
	}
	if o.PromptFile == "" {
		return "", nil
	}

	info, err := os.Stat(o.PromptFile)
	if err != nil {
		return "", fmt.Errorf("prompt file %s: %w", o.PromptFile, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("prompt file %s is a directory", o.PromptFile)
	}
	if info.Size() > maxPromptFileSize {
		return "", fmt.Errorf("prompt file %s is too large (%d bytes, max %d)", o.PromptFile, info.Size(), maxPromptFileSize)
	}

	data, err := os.ReadFile(o.PromptFile)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %s: %w", o.PromptFile, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", o.PromptFile)
	}
	return prompt, nil
}
