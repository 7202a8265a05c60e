package flow

// EventKind enumerates device inputs.
type EventKind uint8

const (
	EventLeft EventKind = iota
	EventRight
	EventBoth
	EventTouch
	EventTick
)

func (k EventKind) String() string {
	switch k {
	case EventLeft:
		return "left"
	case EventRight:
		return "right"
	case EventBoth:
		return "both"
	case EventTouch:
		return "touch"
	case EventTick:
		return "tick"
	}
	return "unknown"
}

// Event is one input delivered by the platform. X and Y are only set for
// touch events.
type Event struct {
	Kind EventKind
	X, Y int
}

func Left() Event          { return Event{Kind: EventLeft} }
func Right() Event         { return Event{Kind: EventRight} }
func Both() Event          { return Event{Kind: EventBoth} }
func Tick() Event          { return Event{Kind: EventTick} }
func Touch(x, y int) Event { return Event{Kind: EventTouch, X: x, Y: y} }

// action is an input after touch translation.
type action uint8

const (
	actPrev action = iota
	actNext
	actConfirm
	actCancel
	actRedraw
)

// translate maps a raw event to an action. Touch screens are split into a
// header band (cancel), a footer band (confirm) and left/right halves.
func (m *Machine) translate(ev Event) (action, bool) {
	switch ev.Kind {
	case EventLeft:
		return actPrev, true
	case EventRight:
		return actNext, true
	case EventBoth:
		return actConfirm, true
	case EventTick:
		return actRedraw, true
	case EventTouch:
		if ev.X < 0 || ev.Y < 0 || ev.X >= m.width || ev.Y >= m.height {
			return 0, false
		}
		band := m.height / 4
		switch {
		case ev.Y < band:
			return actCancel, true
		case ev.Y >= m.height-band:
			return actConfirm, true
		case ev.X < m.width/2:
			return actPrev, true
		default:
			return actNext, true
		}
	}
	return 0, false
}
