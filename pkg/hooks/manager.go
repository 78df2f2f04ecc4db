package hooks

import (
	"context"
	"sync"

	"github.com/glorpus-work/mcbundle/internal/logger"
	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// Manager keeps hooks per phase in registration order.
type Manager struct {
	executor *TengoExecutor
	hooks    map[Phase][]Hook
	mutex    sync.RWMutex
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{
		executor: NewTengoExecutor(),
		hooks:    make(map[Phase][]Hook),
	}
}

// Add registers hook after those already registered for its phase.
func (m *Manager) Add(hook Hook) error {
	if !hook.Phase.Valid() {
		return ErrUnsupportedPhase(string(hook.Phase))
	}
	if hook.Name == "" {
		hook.Name = string(hook.Phase)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.hooks[hook.Phase] = append(m.hooks[hook.Phase], hook)
	return nil
}

// Has reports whether any hook is registered for phase.
func (m *Manager) Has(phase Phase) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.hooks[phase]) > 0
}

// Count returns the number of hooks registered for phase.
func (m *Manager) Count(phase Phase) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.hooks[phase])
}

// Run executes the hooks of phase in order and stops at the first failure.
func (m *Manager) Run(ctx context.Context, phase Phase, hc Context) error {
	m.mutex.RLock()
	hooks := append([]Hook(nil), m.hooks[phase]...)
	m.mutex.RUnlock()

	for _, hook := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("Running hook", logger.Fields{"phase": phase, "hook": hook.Name})
		if err := m.executor.Execute(ctx, hook, hc); err != nil {
			return errors.Wrapf(err, "%s hook failed", phase)
		}
	}
	return nil
}
