// Package common provides timing and memory accounting shared by the batch
// runner and the CLI.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Stage is one named lap of a Timer.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// Timer measures a total duration split into named laps.
type Timer struct {
	start  time.Time
	last   time.Time
	name   string
	total  time.Duration
	stages []Stage
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return NewNamedTimer("")
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	now := time.Now()
	return &Timer{name: name, start: now, last: now}
}

// Lap records the time since the previous lap (or start) under name.
func (t *Timer) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.stages = append(t.stages, Stage{Name: name, Duration: d})
	return d
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.total = time.Since(t.start)
	return t.total
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.total
}

// Stages returns the recorded laps in order.
func (t *Timer) Stages() []Stage {
	return append([]Stage(nil), t.stages...)
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// String formats the total and every lap, e.g. "batch: 12ms (discover 1ms, decode 11ms)".
func (t *Timer) String() string {
	var sb strings.Builder
	if t.name != "" {
		sb.WriteString(t.name + ": ")
	}
	sb.WriteString(t.total.String())
	if len(t.stages) > 0 {
		parts := make([]string, len(t.stages))
		for i, s := range t.stages {
			parts[i] = fmt.Sprintf("%s %v", s.Name, s.Duration)
		}
		sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return sb.String()
}
