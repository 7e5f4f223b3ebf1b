package cli

import (
	"context"
	"fmt"

	"resumegate/internal/ai"
	"resumegate/internal/common"
	"resumegate/internal/errors"
	"resumegate/internal/flatten"
	"resumegate/internal/spreadsheet"

	"github.com/spf13/cobra"
)

var appendCmd = &cobra.Command{
	Use:   "append [record.json]",
	Short: "Append a JSON record to the configured sheet",
	Long: `Flatten a JSON object, extend the sheet header with any new keys and
append one row, exactly as POST /api/sheets-append does. The backend is taken
from sheets.backend (google, xlsx or memory).`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &appendOutput)
	},
	RunE: runAppend,
}

var (
	appendOutput commandOutput
	appendSheet  string
)

func init() {
	outputFlags(appendCmd, &appendOutput)
	appendCmd.Flags().StringVar(&appendSheet, "sheet", "", "Target sheet (default from sheets.sheetName)")
}

func runAppend(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	store, err := spreadsheet.NewStore(cmd.Context(), &cfg.Sheets, logger)
	if err != nil {
		return fmt.Errorf("failed to open sheet backend: %w", err)
	}

	sheet := cfg.Sheets.SheetName
	if appendSheet != "" {
		sheet = appendSheet
	}
	appender := spreadsheet.NewAppender(store, sheet, logger,
		spreadsheet.WithSheetRouting(cfg.Sheets.HonorSheetKey),
		spreadsheet.WithAllowedSheets(cfg.Sheets.AllowedSheets...))

	err = common.RunFileCommand(cmd.Context(), logger, appendOutput, args, common.FileCommand[*flatten.Record, *spreadsheet.AppendResult]{
		Extensions: []string{".json"},
		CreateInput: func(files []common.InputFile) (*flatten.Record, error) {
			if len(files) != 1 {
				return nil, fmt.Errorf("expected 1 file path, got %d", len(files))
			}
			rec, err := flatten.FlattenObject(files[0].Data)
			if err != nil {
				return nil, errors.NewValidationError(errors.ErrCodeInvalidRecord,
					fmt.Sprintf("%s does not hold a JSON object", files[0].Name), err)
			}
			return rec, nil
		},
		LogDetails: func(rec *flatten.Record, out common.CommandConfig) {
			logger.Info("Appending record",
				"sheet", appender.TargetSheet(rec),
				"keys", rec.Len(),
				"backend", cfg.Sheets.Backend)
		},
		Operation: func(ctx context.Context, rec *flatten.Record) (*spreadsheet.AppendResult, *ai.TokenUsage, error) {
			result, err := appender.Append(ctx, rec)
			return result, nil, err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}
