package hooks

import (
	"github.com/vadiminshakov/tokencore/core/dto"
)

// Hook defines the interface for review flow hooks.
type Hook interface {
	OnApprove(d *dto.Decision)
	OnReject(d *dto.Decision)
	OnExpertToggle(enabled bool)
}

// Registry manages a collection of hooks.
type Registry struct {
	hooks []Hook
}

// NewRegistry creates a new hook registry.
func NewRegistry(hooks ...Hook) *Registry {
	r := &Registry{hooks: make([]Hook, 0, len(hooks))}
	for _, h := range hooks {
		r.Register(h)
	}
	return r
}

// Register adds a new hook to the registry.
func (r *Registry) Register(hook Hook) {
	r.hooks = append(r.hooks, hook)
}

// ExecuteApprove notifies all hooks in registration order.
func (r *Registry) ExecuteApprove(d *dto.Decision) {
	for _, hook := range r.hooks {
		hook.OnApprove(d)
	}
}

// ExecuteReject notifies all hooks in registration order.
func (r *Registry) ExecuteReject(d *dto.Decision) {
	for _, hook := range r.hooks {
		hook.OnReject(d)
	}
}

// ExecuteExpertToggle notifies all hooks in registration order.
func (r *Registry) ExecuteExpertToggle(enabled bool) {
	for _, hook := range r.hooks {
		hook.OnExpertToggle(enabled)
	}
}

// Count returns the number of registered hooks
func (r *Registry) Count() int {
	return len(r.hooks)
}
