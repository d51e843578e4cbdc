package workflow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"hackreview/internal/config"
	"hackreview/internal/logging"
	"hackreview/internal/rundir"
	"hackreview/internal/state"
)

// Manager coordinates the pipeline stages over one run directory.
type Manager struct {
	cfg    *config.Config
	store  state.Store
	dir    rundir.Dir
	base   *slog.Logger
	logger *slog.Logger

	now      func() time.Time
	newRunID func() string

	mu     sync.RWMutex
	stages []pipelineStage
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRunID fixes the run id instead of generating a fresh one per run.
func WithRunID(id string) ManagerOption {
	return func(m *Manager) {
		if id != "" {
			m.newRunID = func() string { return id }
		}
	}
}

// NewManager constructs a workflow manager. Stages are registered with
// ConfigureStages.
func NewManager(cfg *config.Config, store state.Store, dir rundir.Dir, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		dir:      dir,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Dir returns the run directory the manager writes to.
func (m *Manager) Dir() rundir.Dir {
	return m.dir
}
