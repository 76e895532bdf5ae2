package ledger

import (
	"math"
	"time"
)

// Source identifies which system a journal line came from.
type Source string

const (
	SourceManual Source = "MANUAL"
	SourceERP    Source = "ERP"
)

// Record is a canonical journal line after cleaning. Numeric cells that
// failed coercion are NaN, never zero; aggregation skips NaN the same
// way the upstream exports treat blank cells.
type Record struct {
	Date        time.Time `json:"date"`
	AccountCode float64   `json:"account_code"` // NaN when missing/unparseable
	AccountName string    `json:"account_name"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Net         float64   `json:"net"` // signed mutation value, independent of debit/credit
	Source      Source    `json:"source"`
	RowID       int       `json:"row_id"` // 1..N in table order, per source
}

// HasAccountCode reports whether the record carries a usable account code.
func (r Record) HasAccountCode() bool {
	return !math.IsNaN(r.AccountCode)
}

// Code returns the account code as an integer chart-of-accounts key.
// Only valid when HasAccountCode is true.
func (r Record) Code() int64 {
	return int64(r.AccountCode)
}

// RawTable is an untyped sheet as read from an upload: a header row and
// one string map per data row. Missing cells are absent keys.
type RawTable struct {
	Columns []string
	Rows    []map[string]string
}

// Len returns the number of data rows.
func (t RawTable) Len() int {
	return len(t.Rows)
}
