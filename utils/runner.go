package utils

// Runner launches the asynchronous half of a capture step: the network call
// and whatever folds its result into session state.
type Runner interface {
	Go(f func())
}

type GoRunner struct{}

func (GoRunner) Go(f func()) { go f() }

// InlineRunner runs tasks on the caller's goroutine. Used with a
// ManualClock it makes the whole capture loop deterministic.
type InlineRunner struct{}

func (InlineRunner) Go(f func()) { f() }
