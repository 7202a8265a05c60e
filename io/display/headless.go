// Package display draws flow screens. Headless logs them; Terminal emulates
// the device in a terminal and turns key presses into device input.
package display

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/flow"
)

// Headless logs every screen and keeps the last one.
type Headless struct {
	mu   sync.Mutex
	last flow.Screen
	n    int
}

func NewHeadless() *Headless { return &Headless{} }

func (h *Headless) Render(s flow.Screen) {
	h.mu.Lock()
	h.last = s
	h.n++
	h.mu.Unlock()

	fields := log.Fields{"state": s.State.String()}
	if s.Pages > 1 {
		fields["page"] = s.Page + 1
		fields["pages"] = s.Pages
	}
	log.WithFields(fields).Infof("[%s] %s", s.Title, s.Text)
}

// Last returns the most recent screen and the number drawn so far.
func (h *Headless) Last() (flow.Screen, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.n
}
