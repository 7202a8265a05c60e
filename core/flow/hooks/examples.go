package hooks

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/dto"
)

// MetricsHook counts finalized decisions.
type MetricsHook struct {
	approveCount uint64
	rejectCount  uint64
	toggleCount  uint64
	startTime    time.Time
}

// NewMetricsHook creates a new metrics hook
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{
		startTime: time.Now(),
	}
}

func (m *MetricsHook) OnApprove(d *dto.Decision) {
	m.approveCount++
	log.WithFields(log.Fields{
		"session":       d.Session,
		"approve_count": m.approveCount,
		"uptime":        time.Since(m.startTime),
	}).Debug("Metrics: approve")
}

func (m *MetricsHook) OnReject(d *dto.Decision) {
	m.rejectCount++
	log.WithFields(log.Fields{
		"session":      d.Session,
		"reject_count": m.rejectCount,
		"uptime":       time.Since(m.startTime),
	}).Debug("Metrics: reject")
}

func (m *MetricsHook) OnExpertToggle(bool) {
	m.toggleCount++
}

// GetStats returns approve, reject and expert toggle counts.
func (m *MetricsHook) GetStats() (uint64, uint64, uint64) {
	return m.approveCount, m.rejectCount, m.toggleCount
}

// Journal records finalized decisions.
//
//go:generate mockgen -destination=../../../mocks/mock_journal.go -package=mocks . Journal
type Journal interface {
	AppendDecision(d dto.Decision) error
}

// AuditHook writes every decision to a journal.
type AuditHook struct {
	journal Journal
}

// NewAuditHook creates a new audit hook
func NewAuditHook(journal Journal) *AuditHook {
	return &AuditHook{journal: journal}
}

func (a *AuditHook) OnApprove(d *dto.Decision) { a.record(d) }

func (a *AuditHook) OnReject(d *dto.Decision) { a.record(d) }

func (a *AuditHook) OnExpertToggle(bool) {}

func (a *AuditHook) record(d *dto.Decision) {
	if err := a.journal.AppendDecision(*d); err != nil {
		log.WithField("audit", true).Errorf("failed to journal decision %s: %v", d.Session, err)
		return
	}
	log.WithField("audit", true).Infof("[AUDIT] %s session=%s items=%d sw=0x%04X",
		d.Outcome, d.Session, d.Items, d.Status)
}

// Settings persists the expert mode flag.
type Settings interface {
	SetExpert(enabled bool) error
}

// SettingsHook persists expert mode changes.
type SettingsHook struct {
	settings Settings
}

// NewSettingsHook creates a new settings hook
func NewSettingsHook(settings Settings) *SettingsHook {
	return &SettingsHook{settings: settings}
}

func (s *SettingsHook) OnApprove(*dto.Decision) {}

func (s *SettingsHook) OnReject(*dto.Decision) {}

func (s *SettingsHook) OnExpertToggle(enabled bool) {
	if err := s.settings.SetExpert(enabled); err != nil {
		log.Errorf("failed to persist expert mode: %v", err)
	}
}
