package market

import (
	"errors"
	"fmt"
)

// ErrData is matched (errors.Is) by every DataError. A data error is fatal
// to a run: the series is unusable and nothing downstream should recover it.
var ErrData = errors.New("data error")

// DataError describes a missing file or a malformed candle.
type DataError struct {
	Source string // file path or feed name, optional
	Row    int    // 1-based row/index, 0 when not row specific
	Err    error
}

func (e *DataError) Error() string {
	switch {
	case e.Source != "" && e.Row > 0:
		return fmt.Sprintf("data error: %s row %d: %v", e.Source, e.Row, e.Err)
	case e.Source != "":
		return fmt.Sprintf("data error: %s: %v", e.Source, e.Err)
	case e.Row > 0:
		return fmt.Sprintf("data error: row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("data error: %v", e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Is(target error) bool { return target == ErrData }

// NewDataError wraps err as a DataError for source/row.
func NewDataError(source string, row int, err error) *DataError {
	return &DataError{Source: source, Row: row, Err: err}
}
