package enum

type Phase string

const (
	PhaseConnect       Phase = "connect"
	PhaseAuthenticate  Phase = "authenticate"
	PhaseSelectMailbox Phase = "select_mailbox"
	PhaseBaseline      Phase = "baseline"
	PhaseWait          Phase = "wait"
	PhaseReact         Phase = "react"
	PhaseTeardown      Phase = "teardown"
	PhaseBackoff       Phase = "backoff"
)

func (p Phase) String() string {
	return string(p)
}

type WaitOutcome string

const (
	WaitOutcomeNone            WaitOutcome = ""
	WaitOutcomeManualInterrupt WaitOutcome = "manual_interrupt"
	WaitOutcomeTimeout         WaitOutcome = "timeout"
	WaitOutcomeNewData         WaitOutcome = "new_data"
)

func (o WaitOutcome) String() string {
	return string(o)
}
