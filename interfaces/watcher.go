package interfaces

import (
	"github.com/customeros/idlesync/internal/models"
)

// WatcherService is the read and control surface the status API uses.
type WatcherService interface {
	Status() map[string]models.AccountStatus
	Interrupt(account string) (bool, error)
}
