package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_FiresOnlyWhenDue(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	s.AfterFunc(300*time.Millisecond, func() { fired++ })

	assert.Equal(t, 0, s.Advance(299*time.Millisecond))
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, s.Advance(time.Millisecond))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestManualScheduler_StoppedTimerNeverFires(t *testing.T) {
	s := NewManualScheduler()
	fired := false
	timer := s.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports nothing pending")
	s.Advance(time.Hour)
	assert.False(t, fired)
	assert.Equal(t, 1, s.Scheduled())
}

func TestManualScheduler_RunsInDueOrder(t *testing.T) {
	s := NewManualScheduler()
	var order []string
	s.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	s.AfterFunc(time.Second, func() { order = append(order, "early") })

	assert.Equal(t, 2, s.Advance(5*time.Second))
	assert.Equal(t, []string{"early", "late"}, order)
}
