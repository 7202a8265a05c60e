package flow

// Idle menu entries.
const (
	idleStepApp = iota
	idleStepExpert
	idleStepVersion
	idleStepDeveloper
	idleStepLicense
	idleStepQuit
)

// IdleStepExpert is the menu entry that toggles expert mode.
const IdleStepExpert = idleStepExpert

// IdleStepQuit is the menu entry that exits the application.
const IdleStepQuit = idleStepQuit

func (m *Machine) onIdle(act action) error {
	switch act {
	case actPrev:
		if m.idleStep > idleStepApp {
			m.idleStep--
			m.redraw()
		}
	case actNext:
		if m.idleStep < idleStepQuit {
			m.idleStep++
			m.redraw()
		}
	case actConfirm:
		switch m.idleStep {
		case idleStepExpert:
			m.ToggleExpert()
		case idleStepQuit:
			return ErrQuit
		}
	}
	return nil
}

func (m *Machine) idleScreen() Screen {
	s := Screen{
		State:   Idle,
		CanPrev: m.idleStep > idleStepApp,
		CanNext: m.idleStep < idleStepQuit,
	}
	switch m.idleStep {
	case idleStepApp:
		s.Icon, s.Title, s.Text = IconApp, m.appName, "is ready"
	case idleStepExpert:
		s.Title, s.Text = "Expert mode:", "disabled"
		if m.expert {
			s.Text = "enabled"
		}
	case idleStepVersion:
		s.Title, s.Text = "Version", m.version
	case idleStepDeveloper:
		s.Title, s.Text = "Developed by:", m.developer
	case idleStepLicense:
		s.Title, s.Text = "License:", "Apache 2.0"
	case idleStepQuit:
		s.Icon, s.Title = IconDashboard, "Quit"
	}
	return s
}
