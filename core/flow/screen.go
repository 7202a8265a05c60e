package flow

import (
	"strconv"

	"github.com/vadiminshakov/tokencore/core/content"
)

// Icon is a glyph shown next to a step.
type Icon uint8

const (
	IconNone Icon = iota
	IconApp
	IconEye
	IconValidate
	IconCrossmark
	IconDashboard
	IconWarning
)

// Screen is a fully resolved step, ready for presentation. The display
// adapter only draws it.
type Screen struct {
	State State
	Icon  Icon
	Title string
	Text  string
	// Page and Pages are set on paging steps.
	Page, Pages int
	// CanPrev and CanNext drive the arrow indicators.
	CanPrev, CanNext bool
}

// Renderer draws screens.
//
//go:generate mockgen -destination=../../mocks/mock_renderer.go -package=mocks . Renderer
type Renderer interface {
	Render(s Screen)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(s Screen)

func (f RendererFunc) Render(s Screen) { f(s) }

func (m *Machine) screen() Screen {
	switch m.sm.Current() {
	case Idle:
		return m.idleScreen()
	case ReviewTitle:
		return Screen{State: ReviewTitle, Icon: IconEye, Title: "Please", Text: "review", CanNext: true, CanPrev: true}
	case ReviewPaging, ErrorPaging:
		return m.pagingScreen()
	case ReviewApprove:
		return Screen{State: ReviewApprove, Icon: IconValidate, Title: ApproveLabel, CanPrev: true, CanNext: true}
	case ReviewReject:
		return Screen{State: ReviewReject, Icon: IconCrossmark, Title: RejectLabel, CanPrev: true}
	case ErrorAck:
		return Screen{State: ErrorAck, Icon: IconValidate, Title: "Ok", CanPrev: true}
	}
	return Screen{State: m.sm.Current()}
}

func (m *Machine) pagingScreen() Screen {
	key, page, err := m.items.RenderPage(m.cursor)
	if err != nil {
		// cursor and store are kept in step, so this is a programming error
		return Screen{State: m.sm.Current(), Icon: IconWarning, Title: "Error", Text: err.Error()}
	}

	s := Screen{
		State:   m.sm.Current(),
		Title:   string(key),
		Text:    string(page),
		Page:    m.cursor.Page,
		Pages:   m.cursor.Pages,
		CanNext: true,
	}
	s.CanPrev = m.cursor.Page > 0 || m.cursor.Item > 0
	if m.cursor.Pages > 1 {
		s.Title = pagedTitle(s.Title, m.cursor.Page, m.cursor.Pages)
	}
	return s
}

// pagedTitle appends "(n/m)" to the key, trimmed to fit the key capacity.
func pagedTitle(key string, page, pages int) string {
	suffix := " (" + strconv.Itoa(page+1) + "/" + strconv.Itoa(pages) + ")"
	if len(key)+len(suffix) > content.MaxKeyLen {
		key = key[:max(0, content.MaxKeyLen-len(suffix))]
	}
	return key + suffix
}

func (m *Machine) redraw() {
	if m.renderer != nil {
		m.renderer.Render(m.screen())
	}
}
