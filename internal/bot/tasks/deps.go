// Package tasks implements the scheduled maintenance tasks of chattop.
package tasks

import (
	"log/slog"
	"time"

	"github.com/edgard/chattop/internal/config"
	"github.com/edgard/chattop/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
	// Now is the task clock; nil means time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
