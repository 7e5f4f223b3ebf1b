package spreadsheet

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"resumegate/internal/errors"
	"resumegate/internal/flatten"
)

const (
	// TimestampColumn is the default first column; it is filled with the append time.
	TimestampColumn = "Timestamp"

	// SheetKey is the reserved record key that names the target sheet.
	SheetKey = "_sheet"

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// AppendResult describes what a single Append did.
type AppendResult struct {
	Sheet        string   `json:"sheet"`
	Header       []string `json:"header"`
	AddedColumns []string `json:"added_columns"`
	Row          []any    `json:"row"`
}

// Appender reconciles a sheet's header with incoming records and appends
// one row per record. Calls targeting the same sheet are serialized so
// concurrent appends in this process never drop each other's new columns.
// A record can only route to the default sheet or an allowed sheet, which
// also bounds the set of per-sheet locks.
type Appender struct {
	store         Store
	defaultSheet  string
	honorSheetKey bool
	allowed       map[string]struct{}
	now           func() time.Time
	logger        *errors.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// AppenderOption customizes an Appender.
type AppenderOption func(*Appender)

// WithClock overrides the time source used for the Timestamp column.
func WithClock(now func() time.Time) AppenderOption {
	return func(a *Appender) { a.now = now }
}

// WithSheetRouting controls whether a "_sheet" value may select the target
// sheet. Only names passed to WithAllowedSheets are honored.
func WithSheetRouting(enabled bool) AppenderOption {
	return func(a *Appender) { a.honorSheetKey = enabled }
}

// WithAllowedSheets lists the sheet names a record may route to.
func WithAllowedSheets(names ...string) AppenderOption {
	return func(a *Appender) {
		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				a.allowed[name] = struct{}{}
			}
		}
	}
}

// NewAppender returns an appender writing to defaultSheet unless a record routes elsewhere.
func NewAppender(store Store, defaultSheet string, logger *errors.Logger, opts ...AppenderOption) *Appender {
	a := &Appender{
		store:         store,
		defaultSheet:  defaultSheet,
		now:           time.Now,
		logger:        logger,
		allowed:       make(map[string]struct{}),
		locks:         make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Append writes rec as a new row. The header is re-read on every call and
// extended with any keys it does not contain yet. If the header update
// succeeds and the row append fails, the extended header stays.
func (a *Appender) Append(ctx context.Context, rec *flatten.Record) (*AppendResult, error) {
	sheet := a.TargetSheet(rec)

	lock := a.sheetLock(sheet)
	lock.Lock()
	defer lock.Unlock()

	current, err := a.store.ReadHeader(ctx, sheet)
	if err != nil {
		return nil, err
	}
	wasEmpty := len(current) == 0
	if wasEmpty {
		current = []string{TimestampColumn}
	}

	header, missing := ReconcileHeader(current, rec.Keys())
	if len(missing) > 0 || wasEmpty {
		if err := a.store.WriteHeader(ctx, sheet, header); err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			a.logger.Info("Extended sheet header", "sheet", sheet, "added_columns", missing)
		}
	}

	row := BuildRow(header, rec, a.now())
	if err := a.store.AppendRow(ctx, sheet, row); err != nil {
		return nil, err
	}

	return &AppendResult{
		Sheet:        sheet,
		Header:       header,
		AddedColumns: missing,
		Row:          row,
	}, nil
}

// TargetSheet returns the sheet rec will be written to. Unknown names fall
// back to the default sheet.
func (a *Appender) TargetSheet(rec *flatten.Record) string {
	if !a.honorSheetKey {
		return a.defaultSheet
	}
	v, ok := rec.Get(SheetKey)
	if !ok {
		return a.defaultSheet
	}
	name, ok := v.(string)
	if !ok || name == "" {
		return a.defaultSheet
	}
	if _, allowed := a.allowed[name]; !allowed {
		a.logger.Warn("Ignoring sheet not in allowlist", "requested_sheet", name, "sheet", a.defaultSheet)
		return a.defaultSheet
	}
	return name
}

func (a *Appender) sheetLock(sheet string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[sheet]
	if !ok {
		l = &sync.Mutex{}
		a.locks[sheet] = l
	}
	return l
}

// ReconcileHeader returns current extended with every key it lacks, in key
// order, plus the list of added keys. The routing key never becomes a column.
func ReconcileHeader(current []string, keys []string) (header []string, missing []string) {
	header = slices.Clone(current)
	seen := make(map[string]struct{}, len(current))
	for _, h := range current {
		seen[h] = struct{}{}
	}
	for _, k := range keys {
		if k == SheetKey {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		missing = append(missing, k)
	}
	header = append(header, missing...)
	return header, missing
}

// BuildRow aligns rec to header. Position 0, when named Timestamp, gets now
// in UTC ISO-8601 with milliseconds. Absent and null values become "".
func BuildRow(header []string, rec *flatten.Record, now time.Time) []any {
	row := make([]any, len(header))
	for i, h := range header {
		if i == 0 && h == TimestampColumn {
			row[i] = now.UTC().Format(timestampLayout)
			continue
		}
		if h == SheetKey {
			row[i] = ""
			continue
		}
		v, ok := rec.Get(h)
		if !ok || v == nil {
			row[i] = ""
			continue
		}
		row[i] = v
	}
	return row
}
