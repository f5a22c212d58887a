package models

import (
	"time"

	"github.com/customeros/idlesync/internal/enum"
)

type MessageFlags struct {
	SeqNum uint32   `json:"seqNum"`
	Flags  []string `json:"flags"`
}

// WaitResult is what an IDLE wait ended with. Payload is only set for new data.
type WaitResult struct {
	Outcome enum.WaitOutcome
	Payload []string
}

type CommandResult struct {
	Command  string
	Success  bool
	ExitCode int
	Stderr   string
}

// AccountStatus is the read model the supervisor keeps per account.
type AccountStatus struct {
	Account         string           `json:"account"`
	Phase           enum.Phase       `json:"phase"`
	CycleId         string           `json:"cycleId,omitempty"`
	Cycles          int64            `json:"cycles"`
	LastOutcome     enum.WaitOutcome `json:"lastOutcome,omitempty"`
	LastHandlersOk  *bool            `json:"lastHandlersOk,omitempty"`
	LastHandlerErr  string           `json:"lastHandlerError,omitempty"`
	LastError       string           `json:"lastError,omitempty"`
	LastChangeAt    time.Time        `json:"lastChangeAt"`
	Waiting         bool             `json:"waiting"`
}
