package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestChecksumDeterministic(t *testing.T) {
	details := map[string]any{"rows": 12, "source": "MANUAL"}

	a := NewEntryAt(fixedTime, "CLEAN_MANUAL_START", details, "system")
	b := NewEntryAt(fixedTime, "CLEAN_MANUAL_START", map[string]any{"source": "MANUAL", "rows": 12}, "system")

	assert.Equal(t, a.Checksum, b.Checksum, "identical inputs must produce identical checksums")
	assert.Len(t, a.Checksum, 16)
}

func TestChecksumChangesWithAnyField(t *testing.T) {
	base := NewEntryAt(fixedTime, "SUMMARY_GENERATED", map[string]any{"total": 5}, "system")

	tests := []struct {
		name  string
		entry Entry
	}{
		{
			name:  "different timestamp",
			entry: NewEntryAt(fixedTime.Add(time.Nanosecond), "SUMMARY_GENERATED", map[string]any{"total": 5}, "system"),
		},
		{
			name:  "different action",
			entry: NewEntryAt(fixedTime, "TXN_RECON_END", map[string]any{"total": 5}, "system"),
		},
		{
			name:  "different details",
			entry: NewEntryAt(fixedTime, "SUMMARY_GENERATED", map[string]any{"total": 6}, "system"),
		},
		{
			name:  "different actor",
			entry: NewEntryAt(fixedTime, "SUMMARY_GENERATED", map[string]any{"total": 5}, "auditor"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base.Checksum, tt.entry.Checksum)
		})
	}
}

func TestLogAppendOrder(t *testing.T) {
	log := NewLog()
	log.Record("ENGINE_INIT", nil)
	log.Record("ACCOUNT_RECON_START", map[string]any{"manual_rows": 3})
	log.Record("ACCOUNT_RECON_END", map[string]any{"total_coa": 1})

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "ENGINE_INIT", entries[0].Action)
	assert.Equal(t, "ACCOUNT_RECON_START", entries[1].Action)
	assert.Equal(t, "ACCOUNT_RECON_END", entries[2].Action)
}

func TestEntriesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Record("ENGINE_INIT", nil)

	entries := log.Entries()
	entries[0].Action = "TAMPERED"

	assert.Equal(t, "ENGINE_INIT", log.Entries()[0].Action)
}

func TestDefaultActor(t *testing.T) {
	log := NewLog()
	entry := log.Record("CLEAN_ERP_START", map[string]any{"rows": 0})

	assert.Equal(t, DefaultActor, entry.Actor)
	assert.NotEmpty(t, entry.Checksum)
}
