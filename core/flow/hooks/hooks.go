// Package hooks provides an extensible hook system for the review flow.
//
// Hooks observe finalized decisions and expert mode changes, so metrics,
// auditing and settings persistence stay out of the state machine.
package hooks

import (
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/dto"
)

// DefaultHook provides the default logging behavior
type DefaultHook struct{}

// NewDefaultHook creates a new default hook instance
func NewDefaultHook() *DefaultHook {
	return &DefaultHook{}
}

func (h *DefaultHook) OnApprove(d *dto.Decision) {
	log.Infof("review %s approved after %d item(s)", d.Session, d.Items)
}

func (h *DefaultHook) OnReject(d *dto.Decision) {
	log.Infof("review %s rejected after %d item(s)", d.Session, d.Items)
}

func (h *DefaultHook) OnExpertToggle(enabled bool) {
	log.Infof("expert mode enabled: %t", enabled)
}
