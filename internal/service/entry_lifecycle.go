package service

import "fmt"

type SubmissionState string

const (
	StateIdle       SubmissionState = "idle"
	StateCreating   SubmissionState = "creating"
	StateStreaming  SubmissionState = "streaming"
	StateFinalizing SubmissionState = "finalizing"
	StateDone       SubmissionState = "done"
	StateFailed     SubmissionState = "failed"
)

var allowedTransitions = map[SubmissionState][]SubmissionState{
	StateIdle:       {StateCreating, StateFailed},
	StateCreating:   {StateStreaming, StateFailed},
	StateStreaming:  {StateFinalizing, StateFailed},
	StateFinalizing: {StateDone, StateFailed},
}

// entryLifecycle tracks one submission. Done and Failed are terminal.
type entryLifecycle struct {
	state   SubmissionState
	history []SubmissionState
}

func newEntryLifecycle() *entryLifecycle {
	return &entryLifecycle{state: StateIdle, history: []SubmissionState{StateIdle}}
}

func (l *entryLifecycle) State() SubmissionState {
	return l.state
}

func (l *entryLifecycle) Transition(to SubmissionState) error {
	for _, next := range allowedTransitions[l.state] {
		if next == to {
			l.state = to
			l.history = append(l.history, to)
			return nil
		}
	}
	return fmt.Errorf("illegal submission transition %s -> %s", l.state, to)
}
