package display

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/tokencore/core/flow"
)

var (
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	arrowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	approveStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	rejectStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("238")).Padding(0, 2)
)

var icons = map[flow.Icon]string{
	flow.IconApp:       "◆",
	flow.IconEye:       "◉",
	flow.IconValidate:  "✔",
	flow.IconCrossmark: "✖",
	flow.IconDashboard: "⏻",
	flow.IconWarning:   "⚠",
}

func titleStyleFor(s flow.Screen) lipgloss.Style {
	switch s.State {
	case flow.ReviewApprove:
		return approveStyle
	case flow.ReviewReject:
		return rejectStyle
	case flow.ErrorPaging, flow.ErrorAck:
		return warnStyle
	}
	return titleStyle
}
