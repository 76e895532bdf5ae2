package ledger

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurix/reconciler/internal/audit"
)

// Column headers of the manual journal sheet.
const (
	manualDateCol      = "Tanggal"
	manualCodeCol      = "COA Daftra"
	manualNameCol      = "COA Daftra Name"
	manualDescCol      = "Uraian"
	manualRefCol       = "Ref. No"
	manualDebitCol     = "Debit-SAR"
	manualCreditCol    = "Kredit-SAR"
	manualMutationCol  = "Nilai Mutasi"
	erpDateCol         = "Date"
	erpCodeCol         = "Account Code"
	erpNameCol         = "Account"
	erpDescCol         = "Description"
	erpRefCol          = "Number"
	erpDebitCol        = "Debit"
	erpCreditCol       = "Credit"
	erpMutationCol     = "Nilai Mutasi"
)

// manualColumns is the whitelist of columns retained from the manual
// journal; columns outside it are ignored, missing ones are tolerated.
var manualColumns = []string{
	"Rekening", manualDateCol, manualRefCol, manualDescCol, "COA Manual",
	manualDebitCol, manualCreditCol, manualMutationCol, "Month", "Year",
	manualCodeCol, manualNameCol,
}

// erpColumns is the whitelist of columns retained from the ERP export.
var erpColumns = []string{
	erpDateCol, "Month", "Year", erpRefCol, erpNameCol,
	erpCodeCol, erpDescCol, "Source", erpDebitCol,
	erpCreditCol, erpMutationCol,
}

// Cleaner normalizes raw uploaded tables into canonical records.
// Malformed cells become NaN and rows without a parseable date are
// dropped; neither condition is an error. Both outcomes are recorded
// on the audit log via before/after row counts.
type Cleaner struct {
	audit *audit.Log
	log   zerolog.Logger
}

// NewCleaner creates a cleaner that records onto the given audit log.
func NewCleaner(auditLog *audit.Log, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		audit: auditLog,
		log:   log.With().Str("component", "cleaner").Logger(),
	}
}

// CleanManual normalizes the manual journal table.
func (c *Cleaner) CleanManual(raw RawTable) []Record {
	c.audit.Record("CLEAN_MANUAL_START", map[string]any{"rows": raw.Len()})

	records := c.clean(raw, SourceManual, columnMapping{
		date:     manualDateCol,
		code:     manualCodeCol,
		name:     manualNameCol,
		desc:     manualDescCol,
		ref:      manualRefCol,
		debit:    manualDebitCol,
		credit:   manualCreditCol,
		mutation: manualMutationCol,
	})

	c.audit.Record("CLEAN_MANUAL_END", map[string]any{
		"rows_cleaned": len(records),
		"columns":      keptColumns(raw, manualColumns),
	})
	return records
}

// CleanERP normalizes the ERP export table.
func (c *Cleaner) CleanERP(raw RawTable) []Record {
	c.audit.Record("CLEAN_ERP_START", map[string]any{"rows": raw.Len()})

	records := c.clean(raw, SourceERP, columnMapping{
		date:     erpDateCol,
		code:     erpCodeCol,
		name:     erpNameCol,
		desc:     erpDescCol,
		ref:      erpRefCol,
		debit:    erpDebitCol,
		credit:   erpCreditCol,
		mutation: erpMutationCol,
	})

	c.audit.Record("CLEAN_ERP_END", map[string]any{
		"rows_cleaned": len(records),
		"columns":      keptColumns(raw, erpColumns),
	})
	return records
}

// columnMapping names the source-specific headers for each canonical field.
type columnMapping struct {
	date     string
	code     string
	name     string
	desc     string
	ref      string
	debit    string
	credit   string
	mutation string
}

func (c *Cleaner) clean(raw RawTable, source Source, cols columnMapping) []Record {
	records := make([]Record, 0, raw.Len())
	dropped := 0

	for _, row := range raw.Rows {
		date, ok := ParseDate(row[cols.date])
		if !ok {
			dropped++
			continue
		}

		records = append(records, Record{
			Date:        date,
			AccountCode: parseNumeric(row[cols.code]),
			AccountName: strings.TrimSpace(row[cols.name]),
			Description: strings.TrimSpace(row[cols.desc]),
			Reference:   strings.TrimSpace(row[cols.ref]),
			Debit:       parseNumeric(row[cols.debit]),
			Credit:      parseNumeric(row[cols.credit]),
			Net:         parseNumeric(row[cols.mutation]),
			Source:      source,
			RowID:       len(records) + 1,
		})
	}

	if dropped > 0 {
		c.log.Warn().
			Str("source", string(source)).
			Int("dropped", dropped).
			Msg("Rows without a parseable date were dropped")
	}
	return records
}

// keptColumns returns the whitelist columns present in the raw table,
// in whitelist order, plus the stamped canonical columns.
func keptColumns(raw RawTable, whitelist []string) []string {
	present := make(map[string]bool, len(raw.Columns))
	for _, col := range raw.Columns {
		present[col] = true
	}

	kept := make([]string, 0, len(whitelist)+2)
	for _, col := range whitelist {
		if present[col] {
			kept = append(kept, col)
		}
	}
	return append(kept, "source", "row_id")
}

// dateLayouts covers the formats the two source systems emit.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"Jan 2, 2006",
}

// ParseDate parses a cell into a date. The second return value is false
// when the cell is empty or no known format matches. Excel serial day
// numbers are accepted because re-saved workbooks often degrade dates
// into them.
func ParseDate(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Excel serial date: days since 1899-12-30
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 200000 {
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		return epoch.AddDate(0, 0, int(serial)), true
	}

	return time.Time{}, false
}

// parseNumeric coerces a cell into a float64, returning NaN for cells
// that are empty or not numeric. Thousand separators are tolerated.
func parseNumeric(cell string) float64 {
	s := strings.TrimSpace(cell)
	if s == "" {
		return math.NaN()
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
