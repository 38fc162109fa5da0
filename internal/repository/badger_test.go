package repository

import (
	"testing"

	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBadgerDoseLog(t *testing.T) {
	testDoseLogContract(t, func(t *testing.T) doseLog {
		db, err := OpenBadger("")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewBadgerDoseLog(db, zap.NewNop())
	})
}

func TestBadgerMedicationStore(t *testing.T) {
	testMedicationStoreContract(t, func(t *testing.T) medicationStore {
		db, err := OpenBadger("")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewBadgerMedicationStore(db, zap.NewNop())
	})
}

func TestBadgerDoseLog_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenBadger(dir)
	require.NoError(t, err)
	log := NewBadgerDoseLog(db, zap.NewNop())
	require.NoError(t, log.Record(t.Context(), event("m1", "2025-10-01", "08:00", model.StatusTaken)))
	require.NoError(t, db.Close())

	db, err = OpenBadger(dir)
	require.NoError(t, err)
	defer db.Close()

	status, ok, err := NewBadgerDoseLog(db, zap.NewNop()).StatusOf(t.Context(), "m1", model.MustParseDate("2025-10-01"), model.MustParseTimeOfDay("08:00"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.StatusTaken, status)
}
