//go:build headless

package main

import "errors"

func init() {
	compiledFeatures = append(compiledFeatures, "gui:none")
}

// ErrNoDisplay is returned by StatusWindow.Start in headless builds.
var ErrNoDisplay = errors.New("status window not available in headless build")

// StatusWindow is a stub in headless builds. CollectStatus still works, so
// the terminal front ends can print the same report.
type StatusWindow struct {
	machine *Machine
	runner  *CPUX86Runner
	done    chan struct{}

	hardResetHandler func()
}

func NewStatusWindow(m *Machine, runner *CPUX86Runner) *StatusWindow {
	return &StatusWindow{machine: m, runner: runner, done: make(chan struct{})}
}

func (w *StatusWindow) Start() error {
	return ErrNoDisplay
}

// Done never closes: there is no window to close.
func (w *StatusWindow) Done() <-chan struct{} {
	return w.done
}

func (w *StatusWindow) Close() error {
	return nil
}

func (w *StatusWindow) SetHardResetHandler(fn func()) {
	w.hardResetHandler = fn
}
