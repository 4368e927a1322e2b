package reorder

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// TimerFrames implements RequestFrame for hosts without a display refresh
// signal. Embed it in a Surface.
type TimerFrames struct {
	Interval time.Duration
}

func NewTimerFrames(interval time.Duration) TimerFrames {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return TimerFrames{Interval: interval}
}

func (f TimerFrames) RequestFrame(fn func()) func() {
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	var once sync.Once
	t := time.AfterFunc(interval, func() { once.Do(fn) })
	return func() {
		t.Stop()
		once.Do(func() {})
	}
}
