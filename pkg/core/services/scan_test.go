package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covershift/dispatch/pkg/db"
)

func TestRunWatchdogScansRiskWindow(t *testing.T) {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	now := time.Date(2026, 3, 14, 17, 50, 0, 0, time.UTC)

	// Imminent with no welfare check out yet.
	imminent := testShift()
	imminent.ID = "shift-imminent"
	imminent.DispatchStatus = db.DispatchNone
	imminent.StartTime = now.Add(10 * time.Minute)
	imminent.EndTime = imminent.StartTime.Add(8 * time.Hour)
	store.addShift(*imminent)

	// Started an hour ago and never resolved.
	missed := testShift()
	missed.ID = "shift-missed"
	missed.DispatchStatus = db.DispatchNone
	missed.StartTime = now.Add(-time.Hour)
	missed.EndTime = now.Add(-30 * time.Minute)
	store.addShift(*missed)

	// Too far out to scan.
	distant := testShift()
	distant.ID = "shift-distant"
	distant.DispatchStatus = db.DispatchNone
	distant.StartTime = now.Add(3 * time.Hour)
	distant.EndTime = distant.StartTime.Add(8 * time.Hour)
	store.addShift(*distant)

	summary, err := RunWatchdog(context.Background(), store, store, notifier, zap.NewNop(), ScanOptions{
		Lookback: 2 * time.Hour,
		Check:    checkOpts(now),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, 1, summary.Outcomes[OutcomeWelfareSent])
	assert.Equal(t, 1, summary.Outcomes[OutcomeFailed])

	assert.Equal(t, db.DispatchWelfareSent, store.shift("shift-imminent").DispatchStatus)
	assert.Equal(t, db.DispatchFailed, store.shift("shift-missed").DispatchStatus)
	assert.Equal(t, db.DispatchNone, store.shift("shift-distant").DispatchStatus)
}

func TestRunWatchdogIsolatesPerShiftErrors(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 3, 14, 17, 50, 0, 0, time.UTC)

	broken := testShift()
	broken.ID = "shift-broken"
	broken.DispatchStatus = db.DispatchNone
	broken.StartTime = now.Add(5 * time.Minute)
	broken.EndTime = broken.StartTime.Add(8 * time.Hour)
	store.addShift(*broken)
	store.getShiftErr["shift-broken"] = errors.New("connection reset")

	healthy := testShift()
	healthy.ID = "shift-healthy"
	healthy.DispatchStatus = db.DispatchNone
	healthy.StartTime = now.Add(10 * time.Minute)
	healthy.EndTime = healthy.StartTime.Add(8 * time.Hour)
	store.addShift(*healthy)

	summary, err := RunWatchdog(context.Background(), store, store, &recordingNotifier{}, zap.NewNop(), ScanOptions{Check: checkOpts(now)})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 1, summary.Errors)
	// The healthy shift was still processed.
	assert.Equal(t, 1, summary.Outcomes[OutcomeWelfareSent])
	assert.Equal(t, db.DispatchWelfareSent, store.shift("shift-healthy").DispatchStatus)
}

func TestRunWatchdogListFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")

	_, err := RunWatchdog(context.Background(), store, store, &recordingNotifier{}, zap.NewNop(), ScanOptions{})
	assert.Error(t, err)
}
