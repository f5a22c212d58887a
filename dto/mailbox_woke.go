package dto

import "time"

// MailboxWoke is published after every React step.
type MailboxWoke struct {
	Account      string    `json:"account"`
	CycleId      string    `json:"cycleId"`
	Outcome      string    `json:"outcome"`
	HandlersOk   bool      `json:"handlersOk"`
	HandlerError string    `json:"handlerError,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}
