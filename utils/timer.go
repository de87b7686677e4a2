package utils

import "time"

// Timer accumulates elapsed wall time between ticks, Skip drops the interval since the last tick
type Timer struct {
	mark time.Time
	acc  time.Duration
}

func NewTimer() *Timer {
	return &Timer{mark: time.Now()}
}

func (t *Timer) Tick() time.Duration {
	now := time.Now()
	t.acc += now.Sub(t.mark)
	t.mark = now
	return t.acc
}

func (t *Timer) Skip() {
	t.mark = time.Now()
}

func (t *Timer) Accumulated() time.Duration { return t.acc }
