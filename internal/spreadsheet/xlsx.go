package spreadsheet

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"sync"

	"resumegate/internal/errors"

	"github.com/xuri/excelize/v2"
)

// XLSXStore keeps every sheet in a local workbook file. The workbook is
// opened and saved on each call, so the file is always current on disk.
type XLSXStore struct {
	path   string
	mu     sync.Mutex
	logger *errors.Logger
}

// NewXLSXStore returns a store writing to path. The file is created on the first write.
func NewXLSXStore(path string, logger *errors.Logger) (*XLSXStore, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"sheets.xlsxPath is required for the xlsx backend", nil)
	}
	return &XLSXStore{path: path, logger: logger}, nil
}

func (x *XLSXStore) ReadHeader(_ context.Context, sheet string) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeSheetRead, "open workbook", err)
	}
	defer x.close(f)

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		return []string{}, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeSheetRead,
			fmt.Sprintf("read sheet %s", sheet), err)
	}
	if len(rows) == 0 {
		return []string{}, nil
	}
	return rows[0], nil
}

func (x *XLSXStore) WriteHeader(_ context.Context, sheet string, header []string) error {
	return x.update(sheet, func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		width := 0
		if len(rows) > 0 {
			width = len(rows[0])
		}
		for i := range max(len(header), width) {
			cell, err := excelize.CoordinatesToCellName(i+1, 1)
			if err != nil {
				return err
			}
			var value any
			if i < len(header) {
				value = header[i]
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *XLSXStore) AppendRow(_ context.Context, sheet string, row []any) error {
	return x.update(sheet, func(f *excelize.File) error {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return err
		}
		rowIdx := len(rows) + 1
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *XLSXStore) update(sheet string, fn func(f *excelize.File) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open()
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeSheetWrite, "open workbook", err)
	}
	defer x.close(f)

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return errors.NewStorageError(errors.ErrCodeSheetWrite,
				fmt.Sprintf("create sheet %s", sheet), err)
		}
	}

	if err := fn(f); err != nil {
		return errors.NewStorageError(errors.ErrCodeSheetWrite,
			fmt.Sprintf("update sheet %s", sheet), err).WithContext("path", x.path)
	}
	if err := f.SaveAs(x.path); err != nil {
		return errors.NewStorageError(errors.ErrCodeSheetWrite, "save workbook", err).
			WithContext("path", x.path)
	}
	return nil
}

func (x *XLSXStore) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(x.path)
	if err == nil {
		return f, nil
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	return nil, err
}

func (x *XLSXStore) close(f *excelize.File) {
	if err := f.Close(); err != nil && x.logger != nil {
		x.logger.Warn("Failed to close workbook", "path", x.path, "error", err)
	}
}
