package cli

import (
	"resumegate/internal/common"

	"github.com/spf13/cobra"
)

type commandOutput = common.CommandConfig

// resolveOutputFormat picks the format from the flag, then the output file's
// extension, then the configured default, and validates the result
func resolveOutputFormat(cmd *cobra.Command, out *commandOutput) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	if out.OutputFormat == "" {
		out.OutputFormat = common.InferFormat(out.OutputFile)
	}
	if out.OutputFormat == "" {
		out.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(out.OutputFormat, cfg.App.SupportedFormats)
}
