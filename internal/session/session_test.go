package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSMTransitions(t *testing.T) {
	fsm := NewFSM()

	t.Run("BookingPath", func(t *testing.T) {
		s := &Session{Flow: FlowBook}
		assert.True(t, fsm.Advance(s, StepPickDate))
		assert.True(t, fsm.Advance(s, StepPickSeat))
		assert.True(t, fsm.Advance(s, StepConfirm))
		assert.False(t, s.UpdatedAt.IsZero())
	})

	t.Run("ConfirmBackToSeat", func(t *testing.T) {
		s := &Session{Flow: FlowBook, Step: StepConfirm}
		assert.True(t, fsm.Advance(s, StepPickSeat))
	})

	t.Run("SkippingStepsRejected", func(t *testing.T) {
		s := &Session{Flow: FlowBook, Step: StepPickDate}
		assert.False(t, fsm.Advance(s, StepConfirm))
		assert.Equal(t, StepPickDate, s.Step)
	})

	t.Run("AdminRulePath", func(t *testing.T) {
		s := &Session{Flow: FlowAdminRuleNew, Step: StepAskUsername}
		assert.True(t, fsm.Advance(s, StepPickWeekdays))
		assert.True(t, fsm.Advance(s, StepPickWeekdays)) // toggling stays in place
		assert.True(t, fsm.Advance(s, StepPickSeat))
		assert.True(t, fsm.Advance(s, StepConfirm))
	})
}

func TestSessionActive(t *testing.T) {
	assert.False(t, (*Session)(nil).Active())
	assert.False(t, (&Session{}).Active())
	assert.True(t, (&Session{Flow: FlowCancel}).Active())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := &Session{Flow: FlowBook, Step: StepPickDate, Date: "2026-09-08"}
	require.NoError(t, store.Put(ctx, 1, s))

	got, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, FlowBook, got.Flow)
	assert.Equal(t, "2026-09-08", got.Date)

	// The store hands out copies, not the shared pointer.
	got.Date = "mutated"
	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-08", again.Date)

	require.NoError(t, store.Clear(ctx, 1))
	got, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}
