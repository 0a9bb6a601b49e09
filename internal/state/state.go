package state

import (
	"fmt"

	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/logger"
)

// Phase is a stage of a provisioning run. Runs move strictly forward:
// Loading → InstallingPackages → RunningSetupScripts → MaterializingConfig →
// ActivatingServices → Done. Failed can be entered from any non-terminal phase.
type Phase int

const (
	Loading Phase = iota
	InstallingPackages
	RunningSetupScripts
	MaterializingConfig
	ActivatingServices
	Done
	Failed
)

var phaseNames = map[Phase]string{
	Loading:             "loading",
	InstallingPackages:  "installing-packages",
	RunningSetupScripts: "running-setup-scripts",
	MaterializingConfig: "materializing-config",
	ActivatingServices:  "activating-services",
	Done:                "done",
	Failed:              "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transitions are allowed.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

// Run tracks the phase of a single provisioning run. It is not safe for
// concurrent use; runs are sequential.
type Run struct {
	current Phase          // phase the run is in
	log     *logger.Logger // receives transitions at debug level
}

// NewRun starts a run in the Loading phase.
func NewRun(log *logger.Logger) *Run {
	return &Run{current: Loading, log: log}
}

// Current returns the phase the run is in.
func (r *Run) Current() Phase {
	return r.current
}

// Advance moves to next, which must be the immediate successor of the
// current phase.
func (r *Run) Advance(next Phase) error {
	if r.current.Terminal() || next != r.current+1 || next == Failed {
		return errors.Newf(errors.ErrInvalidTransition, "cannot move from %s to %s", r.current, next)
	}
	r.log.Debugf("Phase %s -> %s", r.current, next)
	r.current = next
	return nil
}

// Fail moves the run to Failed and returns err, so callers can write
// `return run.Fail(err)`. A run that already ended keeps its phase.
func (r *Run) Fail(err error) error {
	if r.current.Terminal() {
		return err
	}
	r.log.Debugf("Phase %s -> %s: %v", r.current, Failed, err)
	r.current = Failed
	return err
}
