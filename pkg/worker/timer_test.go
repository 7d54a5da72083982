package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerFiresAndRearms(t *testing.T) {
	t.Parallel()

	var fires int32
	var timer *Timer
	timer = NewTimer(func() {
		atomic.AddInt32(&fires, 1)
		timer.Reset(5 * time.Millisecond)
	})
	timer.Start(5 * time.Millisecond)
	defer timer.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fires) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTimerStopPreventsFurtherFires(t *testing.T) {
	t.Parallel()

	var fires int32
	timer := NewTimer(func() { atomic.AddInt32(&fires, 1) })
	timer.Start(5 * time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	timer.Stop()
	afterStop := atomic.LoadInt32(&fires)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, afterStop, atomic.LoadInt32(&fires))
}

func TestTimerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	timer := NewTimer(func() {})
	timer.Start(time.Hour)
	timer.Stop()
	assert.NotPanics(t, func() { timer.Stop() })
}
