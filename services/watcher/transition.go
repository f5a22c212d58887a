package watcher

import "github.com/customeros/idlesync/internal/enum"

// transition returns the phase that follows phase given the step error.
// React and Teardown never abort: their failures are logged by the step.
func transition(phase enum.Phase, err error) enum.Phase {
	switch phase {
	case enum.PhaseConnect:
		if err != nil {
			return enum.PhaseBackoff
		}
		return enum.PhaseAuthenticate
	case enum.PhaseAuthenticate:
		if err != nil {
			return enum.PhaseBackoff
		}
		return enum.PhaseSelectMailbox
	case enum.PhaseSelectMailbox:
		if err != nil {
			return enum.PhaseBackoff
		}
		return enum.PhaseBaseline
	case enum.PhaseBaseline:
		if err != nil {
			return enum.PhaseBackoff
		}
		return enum.PhaseWait
	case enum.PhaseWait:
		if err != nil {
			return enum.PhaseBackoff
		}
		return enum.PhaseReact
	case enum.PhaseReact:
		return enum.PhaseTeardown
	case enum.PhaseTeardown:
		return enum.PhaseBackoff
	default:
		return enum.PhaseConnect
	}
}
