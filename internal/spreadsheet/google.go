package spreadsheet

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"resumegate/internal/config"
	"resumegate/internal/errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleStore talks to one spreadsheet through the Sheets v4 values API.
type GoogleStore struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	logger        *errors.Logger
}

// NewGoogleStore authenticates as a service account and binds to cfg.SpreadsheetID.
func NewGoogleStore(ctx context.Context, cfg *config.SheetsConfig, logger *errors.Logger) (*GoogleStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"sheets.spreadsheetId is required for the google backend", nil)
	}

	ts, err := serviceAccountTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"failed to create Sheets client", err)
	}

	logger.Info("Google Sheets backend ready",
		"spreadsheet_id", cfg.SpreadsheetID,
		"client_email", cfg.ClientEmail)

	return &GoogleStore{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// serviceAccountTokenSource prefers a credentials JSON file and falls back
// to a client email plus PEM private key.
func serviceAccountTokenSource(ctx context.Context, cfg *config.SheetsConfig) (oauth2.TokenSource, error) {
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("cannot read credentials file %s", cfg.CredentialsFile), err)
		}
		jwtCfg, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				"invalid service account credentials file", err)
		}
		return jwtCfg.TokenSource(ctx), nil
	}

	if cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"sheets.clientEmail and sheets.privateKey are required for the google backend", nil)
	}

	jwtCfg := &jwt.Config{
		Email:      cfg.ClientEmail,
		PrivateKey: []byte(config.NormalizePrivateKey(cfg.PrivateKey)),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	return jwtCfg.TokenSource(ctx), nil
}

func (g *GoogleStore) ReadHeader(ctx context.Context, sheet string) ([]string, error) {
	resp, err := g.values.Get(g.spreadsheetID, headerRange(sheet)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, g.wrap(errors.ErrCodeSheetRead, "read header", sheet, err)
	}

	if len(resp.Values) == 0 {
		return []string{}, nil
	}
	header := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		header = append(header, fmt.Sprint(cell))
	}
	return header, nil
}

func (g *GoogleStore) WriteHeader(ctx context.Context, sheet string, header []string) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}

	_, err := g.values.Update(g.spreadsheetID, headerRange(sheet), &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]any{row},
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap(errors.ErrCodeSheetWrite, "write header", sheet, err)
	}
	return nil
}

func (g *GoogleStore) AppendRow(ctx context.Context, sheet string, row []any) error {
	_, err := g.values.Append(g.spreadsheetID, quoteSheetName(sheet), &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]any{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return g.wrap(errors.ErrCodeSheetWrite, "append row", sheet, err)
	}
	return nil
}

func (g *GoogleStore) wrap(code, op, sheet string, err error) error {
	message := fmt.Sprintf("sheets %s failed", op)
	appErr := errors.NewStorageError(code, message, err)
	if errors.IsNetworkError(err) {
		appErr = errors.NewNetworkError(code, message, err)
	}
	appErr = appErr.WithContext("sheet", sheet)

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		appErr = appErr.WithContext("http_status", apiErr.Code)
		if reason := firstReason(apiErr); reason != "" {
			appErr = appErr.WithContext("reason", reason)
		}
	}
	return appErr
}

func firstReason(apiErr *googleapi.Error) string {
	for _, item := range apiErr.Errors {
		if item.Reason != "" {
			return item.Reason
		}
	}
	return strings.TrimSpace(apiErr.Message)
}
