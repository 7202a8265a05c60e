// Package flow is the device UI state machine: the idle menu, the paged
// review that gates approve/reject, and the paged error notice.
//
// The machine is driven from a single execution context. Handler calls
// (ShowReview, ShowError) and input events (HandleEvent) both run on the
// goroutine that owns the command loop, so no state here is locked.
//
// A decision is only finalized from ReviewApprove or ReviewReject. ReviewApprove
// is entered only after every page of every item has been shown in order.
package flow

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/dto"
	"github.com/vadiminshakov/tokencore/core/flow/hooks"
)

const (
	ApproveLabel = "APPROVE"
	RejectLabel  = "REJECT"
	ErrorTitle   = "Error"
)

var (
	// ErrFlowMounted is returned when a review or error flow is requested
	// while the device is not idle.
	ErrFlowMounted = errors.New("another flow is mounted")
	// ErrQuit is returned when the user selects Quit in the idle menu.
	ErrQuit     = errors.New("quit requested")
	ErrNoReview = errors.New("no review handler")
)

// Review is implemented by the command handler for content awaiting approval.
//
//go:generate mockgen -destination=../../mocks/mock_review.go -package=mocks . Review
type Review interface {
	// LoopStart is called each time paging is entered, so the handler can
	// reset its iteration state.
	LoopStart()
	// LoopInside writes item idx into items. It returns false, leaving items
	// untouched, when idx is past the last item.
	LoopInside(idx int, items *content.Store) (bool, error)
	// LoopEnd is called once each time paging is left.
	LoopEnd()
	// Approve writes the reply payload into out and returns its length and
	// status word.
	Approve(out []byte) (int, apdu.StatusWord)
	// Reject is the counterpart of Approve.
	Reject(out []byte) (int, apdu.StatusWord)
}

// Replier sends the first n bytes of the shared command buffer and returns
// without waiting for the next command.
//
//go:generate mockgen -destination=../../mocks/mock_replier.go -package=mocks . Replier
type Replier interface {
	Reply(n int) error
}

// Checker is the stack guard, checked right after every review callback.
type Checker interface {
	Check() error
}

type flowKind uint8

const (
	flowNone flowKind = iota
	flowIdle
	flowReview
	flowError
)

type Option func(m *Machine)

// WithRenderer sets the display adapter.
func WithRenderer(r Renderer) Option {
	return func(m *Machine) { m.renderer = r }
}

// WithHooks sets the hook registry notified on decisions and expert toggles.
func WithHooks(r *hooks.Registry) Option {
	return func(m *Machine) { m.hooks = r }
}

// WithExpert sets the initial expert mode, usually restored from settings.
func WithExpert(enabled bool) Option {
	return func(m *Machine) { m.expert = enabled }
}

// WithAppInfo sets the strings shown in the idle menu.
func WithAppInfo(name, version, developer string) Option {
	return func(m *Machine) {
		m.appName, m.version, m.developer = name, version, developer
	}
}

// WithChecker sets the stack guard run after calls into the review handler.
func WithChecker(c Checker) Option {
	return func(m *Machine) { m.guard = c }
}

// WithScreenSize sets the touch surface geometry.
func WithScreenSize(width, height int) Option {
	return func(m *Machine) { m.width, m.height = width, height }
}

type Machine struct {
	sm       stateMachine
	items    *content.Store
	buf      *apdu.Buffer
	replier  Replier
	renderer Renderer
	hooks    *hooks.Registry
	guard    Checker
	// set once the guard fails; no callback runs after it
	halted error

	// display stack: at most one flow is mounted
	stackCount int
	mounted    flowKind

	cursor    content.Cursor
	review    Review
	session   uuid.UUID
	itemCount int
	itemsSeen int
	seenAll   bool
	decided   bool
	onAck     func()

	idleStep int
	expert   bool

	appName, version, developer string
	width, height               int
}

// New returns a machine in Idle. Nothing is drawn until ShowIdle.
func New(items *content.Store, buf *apdu.Buffer, replier Replier, opts ...Option) *Machine {
	m := &Machine{
		items:     items,
		buf:       buf,
		replier:   replier,
		hooks:     hooks.NewRegistry(),
		appName:   "Tokencore",
		version:   "0.0.0",
		developer: "unknown",
		width:     128,
		height:    64,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the active step.
func (m *Machine) State() State { return m.sm.Current() }

// Cursor returns the paging position.
func (m *Machine) Cursor() content.Cursor { return m.cursor }

// Expert reports the expert mode flag. Handlers read it to pick verbosity.
func (m *Machine) Expert() bool { return m.expert }

// Session returns the identifier of the current or last review.
func (m *Machine) Session() uuid.UUID { return m.session }

// Mounted returns the number of flows on the display stack (0 or 1).
func (m *Machine) Mounted() int { return m.stackCount }

// IdleStep returns the selected idle menu entry.
func (m *Machine) IdleStep() int { return m.idleStep }

func (m *Machine) mount(k flowKind) {
	if m.stackCount == 0 {
		m.stackCount++
	}
	m.mounted = k
}

// ShowIdle shows the idle menu from its first entry.
func (m *Machine) ShowIdle() error {
	return m.enterIdle(idleStepApp)
}

func (m *Machine) enterIdle(step int) error {
	if err := m.sm.Transition(Idle); err != nil {
		return err
	}
	m.review = nil
	m.onAck = nil
	m.items.Reset()
	m.cursor = content.Cursor{}
	m.idleStep = step
	m.mount(flowIdle)
	m.redraw()
	return nil
}

// ShowReview starts a review session for r. The device must be idle.
func (m *Machine) ShowReview(r Review) error {
	if r == nil {
		return ErrNoReview
	}
	if cur := m.sm.Current(); cur != Idle {
		return errors.Wrapf(ErrFlowMounted, "state %s", cur)
	}
	if err := m.sm.Transition(ReviewTitle); err != nil {
		return err
	}

	m.review = r
	m.session = uuid.New()
	m.itemCount, m.itemsSeen = 0, 0
	m.seenAll, m.decided = false, false
	m.cursor = content.Cursor{}
	m.mount(flowReview)
	m.redraw()

	log.Debugf("review %s started", m.session)
	return nil
}

// ShowError pages message to the user. onAck, if set, runs once when the
// user acknowledges. The device must be idle.
func (m *Machine) ShowError(message string, onAck func()) error {
	if cur := m.sm.Current(); cur != Idle {
		return errors.Wrapf(ErrFlowMounted, "state %s", cur)
	}
	if err := m.items.SetItem(ErrorTitle, message); err != nil {
		return err
	}
	if err := m.sm.Transition(ErrorPaging); err != nil {
		return err
	}

	m.onAck = onAck
	m.cursor = content.Cursor{Pages: m.items.PageCount()}
	m.mount(flowError)
	m.redraw()
	return nil
}

// ToggleExpert flips expert mode and re-enters the idle menu on the expert
// entry. It only acts from Idle and returns the resulting flag.
func (m *Machine) ToggleExpert() bool {
	if m.sm.Current() != Idle {
		log.Warnf("expert toggle ignored in state %s", m.sm.Current())
		return m.expert
	}
	m.expert = !m.expert
	m.hooks.ExecuteExpertToggle(m.expert)
	if err := m.enterIdle(idleStepExpert); err != nil {
		log.Errorf("failed to re-enter idle: %v", err)
	}
	return m.expert
}

// HandleEvent applies one input. It returns ErrQuit when the user quits, and
// errors from sending a decision reply.
func (m *Machine) HandleEvent(ev Event) error {
	if m.halted != nil {
		return m.halted
	}
	act, ok := m.translate(ev)
	if !ok {
		return nil
	}
	if act == actRedraw {
		m.redraw()
		return nil
	}

	switch m.sm.Current() {
	case Idle:
		return m.onIdle(act)
	case ReviewTitle:
		return m.onTitle(act)
	case ReviewPaging:
		return m.onPaging(act)
	case ReviewApprove:
		return m.onApprove(act)
	case ReviewReject:
		return m.onReject(act)
	case ErrorPaging:
		return m.onErrorPaging(act)
	case ErrorAck:
		return m.onErrorAck(act)
	}
	return nil
}

func (m *Machine) goTo(next State) error {
	if err := m.sm.Transition(next); err != nil {
		return err
	}
	m.redraw()
	return nil
}

func (m *Machine) onTitle(act action) error {
	switch act {
	case actNext, actConfirm:
		return m.enterPaging(false)
	case actPrev, actCancel:
		return m.goTo(ReviewReject)
	}
	return nil
}

// enterPaging starts the item loop, either on the first page of the first
// item or, coming back from the approve step, on the last page of the last one.
func (m *Machine) enterPaging(fromEnd bool) error {
	if fromEnd && m.itemCount == 0 {
		return nil
	}
	if err := m.sm.Transition(ReviewPaging); err != nil {
		return err
	}
	m.review.LoopStart()
	if err := m.check(); err != nil {
		return err
	}

	idx := 0
	if fromEnd {
		idx = m.itemCount - 1
	}
	ok, err := m.loopInside(idx)
	if err != nil {
		return m.abort(err)
	}
	if !ok {
		if fromEnd {
			return m.abort(errors.Errorf("item %d vanished", idx))
		}
		// empty review
		m.seenAll = true
		return m.leavePaging(ReviewApprove)
	}

	pages := m.items.PageCount()
	m.cursor = content.Cursor{Item: idx, Pages: pages}
	if fromEnd {
		m.cursor.Page = pages - 1
	}
	m.itemsSeen = max(m.itemsSeen, idx+1)
	m.redraw()
	return nil
}

func (m *Machine) onPaging(act action) error {
	switch act {
	case actNext:
		if m.cursor.Page+1 < m.cursor.Pages {
			m.cursor.Page++
			m.redraw()
			return nil
		}
		next := m.cursor.Item + 1
		ok, err := m.loopInside(next)
		if err != nil {
			return m.abort(err)
		}
		if !ok {
			m.itemCount = next
			m.seenAll = true
			return m.leavePaging(ReviewApprove)
		}
		m.cursor = content.Cursor{Item: next, Pages: m.items.PageCount()}
		m.itemsSeen = max(m.itemsSeen, next+1)
		m.redraw()

	case actPrev:
		if m.cursor.Page > 0 {
			m.cursor.Page--
			m.redraw()
			return nil
		}
		if m.cursor.Item == 0 {
			return nil
		}
		prev := m.cursor.Item - 1
		ok, err := m.loopInside(prev)
		if err != nil {
			return m.abort(err)
		}
		if !ok {
			return m.abort(errors.Errorf("item %d vanished", prev))
		}
		pages := m.items.PageCount()
		m.cursor = content.Cursor{Item: prev, Page: pages - 1, Pages: pages}
		m.redraw()

	case actConfirm:
		// Both skips to approve only once every item has been shown;
		// before that it is ignored
		if m.seenAll {
			return m.leavePaging(ReviewApprove)
		}

	case actCancel:
		return m.leavePaging(ReviewReject)
	}
	return nil
}

func (m *Machine) leavePaging(next State) error {
	if err := m.sm.Transition(next); err != nil {
		return err
	}
	m.review.LoopEnd()
	if err := m.check(); err != nil {
		return err
	}
	m.redraw()
	return nil
}

func (m *Machine) loopInside(idx int) (bool, error) {
	ok, err := m.review.LoopInside(idx, m.items)
	if cerr := m.check(); cerr != nil {
		return false, cerr
	}
	return ok, err
}

// check runs the guard and latches its failure.
func (m *Machine) check() error {
	if m.halted != nil {
		return m.halted
	}
	if m.guard == nil {
		return nil
	}
	if err := m.guard.Check(); err != nil {
		m.halted = err
		return err
	}
	return nil
}

// abort rejects the session after the handler failed to produce an item.
func (m *Machine) abort(cause error) error {
	if m.halted != nil {
		return m.halted
	}
	log.Warnf("review %s aborted: %v", m.session, cause)
	if m.sm.Current() == ReviewPaging {
		if err := m.sm.Transition(ReviewReject); err != nil {
			return err
		}
		m.review.LoopEnd()
	} else if err := m.sm.Transition(ReviewReject); err != nil {
		return err
	}
	return m.finalize(dto.OutcomeRejected)
}

func (m *Machine) onApprove(act action) error {
	switch act {
	case actConfirm:
		return m.finalize(dto.OutcomeApproved)
	case actPrev:
		return m.enterPaging(true)
	case actNext, actCancel:
		return m.goTo(ReviewReject)
	}
	return nil
}

func (m *Machine) onReject(act action) error {
	switch act {
	case actConfirm:
		return m.finalize(dto.OutcomeRejected)
	case actPrev:
		if m.seenAll {
			return m.goTo(ReviewApprove)
		}
		return m.goTo(ReviewTitle)
	}
	return nil
}

// finalize runs the handler's approve or reject callback at most once per
// session, sends the reply and returns to Idle.
func (m *Machine) finalize(outcome dto.Outcome) error {
	if m.decided || m.review == nil {
		return nil
	}
	m.decided = true

	// keep room for the status word
	out := m.buf.Bytes()
	out = out[:len(out)-2]

	var (
		n  int
		sw apdu.StatusWord
	)
	if outcome == dto.OutcomeApproved {
		n, sw = m.review.Approve(out)
	} else {
		n, sw = m.review.Reject(out)
	}
	if err := m.check(); err != nil {
		return err
	}
	if n < 0 || n > len(out) {
		log.Errorf("review callback returned %d bytes for a %d byte buffer", n, len(out))
		n, sw = 0, apdu.ExecutionError
	}
	tx, _ := m.buf.PutStatus(n, sw)

	d := dto.Decision{
		Session: m.session,
		Outcome: outcome,
		Items:   m.itemsSeen,
		Status:  uint16(sw),
		At:      time.Now(),
	}
	replyErr := m.replier.Reply(tx)
	// the reply is on the wire, drop signatures and keys from the buffer
	m.buf.Zero()

	if outcome == dto.OutcomeApproved {
		m.hooks.ExecuteApprove(&d)
	} else {
		m.hooks.ExecuteReject(&d)
	}

	if err := m.enterIdle(idleStepApp); err != nil {
		return err
	}
	if replyErr != nil {
		return errors.Wrap(replyErr, "send review reply")
	}
	return nil
}

func (m *Machine) onErrorPaging(act action) error {
	switch act {
	case actNext:
		if m.cursor.Page+1 < m.cursor.Pages {
			m.cursor.Page++
			m.redraw()
			return nil
		}
		return m.goTo(ErrorAck)
	case actPrev:
		if m.cursor.Page > 0 {
			m.cursor.Page--
			m.redraw()
		}
	}
	return nil
}

func (m *Machine) onErrorAck(act action) error {
	switch act {
	case actConfirm:
		ack := m.onAck
		m.onAck = nil
		if ack != nil {
			ack()
		}
		return m.enterIdle(idleStepApp)
	case actPrev:
		if err := m.sm.Transition(ErrorPaging); err != nil {
			return err
		}
		m.cursor.Page = m.cursor.Pages - 1
		m.redraw()
	}
	return nil
}
