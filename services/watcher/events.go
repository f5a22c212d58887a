package watcher

import (
	"time"

	"github.com/customeros/idlesync/internal/enum"
)

// StatusEvent is sent by a worker to the supervisor on every phase change.
type StatusEvent struct {
	Account string
	CycleId string
	Phase   enum.Phase
	At      time.Time
	Err     error
	Waiting bool

	// set on the React event only
	Woke       bool
	Outcome    enum.WaitOutcome
	HandlerErr error
}
