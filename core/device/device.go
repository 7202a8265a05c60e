// Package device assembles the process-wide device context.
//
// Ownership is fixed at construction and never changes:
//
//   - Buffer is the shared command buffer. The multiplexer writes inbound
//     frames into it, the handler overwrites it with its reply, and the flow
//     machine writes approve/reject replies into it. Only the command loop
//     goroutine touches it.
//   - Items holds the current review item. The handler fills it from
//     LoopInside; the flow machine and the renderer read it.
//   - Guard holds the stack canary next to the buffer.
//
// Nothing in the context is safe for use from other goroutines. Input from
// other goroutines reaches it only through the events channel, which the
// multiplexer drains on the command loop goroutine.
package device

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/app"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/dispatcher"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/core/flow/hooks"
	"github.com/vadiminshakov/tokencore/core/guard"
	"github.com/vadiminshakov/tokencore/io/transport"
)

// Config describes the device model and application identity.
type Config struct {
	Target    content.Target
	MTU       int
	AppName   string
	Version   string
	Developer string
	Expert    bool
	Seed      [app.SeedSize]byte
	Tick      time.Duration
}

type Option func(c *Context)

// WithRenderer sets the display adapter.
func WithRenderer(r flow.Renderer) Option {
	return func(c *Context) { c.renderer = r }
}

// WithEvents sets the device input source.
func WithEvents(events <-chan flow.Event) Option {
	return func(c *Context) { c.events = events }
}

// WithHalter overrides the fatal halter.
func WithHalter(h guard.Halter) Option {
	return func(c *Context) { c.halter = h }
}

// WithHooks registers decision hooks next to the default logging hook.
func WithHooks(h ...hooks.Hook) Option {
	return func(c *Context) { c.extraHooks = append(c.extraHooks, h...) }
}

// Context is the single device instance.
type Context struct {
	Buffer apdu.Buffer
	Items  content.Store

	Guard      *guard.Guard
	Hooks      *hooks.Registry
	Flow       *flow.Machine
	Mux        *transport.Mux
	App        *app.App
	Dispatcher *dispatcher.Dispatcher

	renderer   flow.Renderer
	events     <-chan flow.Event
	halter     guard.Halter
	extraHooks []hooks.Hook
}

// New allocates all device storage and wires the components over link.
func New(cfg Config, link transport.Link, opts ...Option) (*Context, error) {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}

	mtu := cfg.MTU
	if mtu == 0 {
		mtu = apdu.MaxFrameSize
	}
	if err := c.Buffer.Init(mtu); err != nil {
		return nil, errors.Wrap(err, "command buffer")
	}
	pageSize, err := cfg.Target.PageSize()
	if err != nil {
		return nil, err
	}
	if err := c.Items.Init(pageSize); err != nil {
		return nil, errors.Wrap(err, "content store")
	}

	c.Guard = guard.New(c.halter, link)
	c.Hooks = hooks.NewRegistry(append([]hooks.Hook{hooks.NewDefaultHook()}, c.extraHooks...)...)

	muxOpts := []transport.Option{transport.WithEvents(c.events)}
	if cfg.Tick > 0 {
		muxOpts = append(muxOpts, transport.WithTick(cfg.Tick))
	}
	if c.halter != nil {
		muxOpts = append(muxOpts, transport.WithHalter(c.halter))
	}
	c.Mux = transport.New(link, &c.Buffer, muxOpts...)

	flowOpts := []flow.Option{
		flow.WithHooks(c.Hooks),
		flow.WithChecker(c.Guard),
		flow.WithExpert(cfg.Expert),
		flow.WithAppInfo(cfg.AppName, cfg.Version, cfg.Developer),
	}
	if c.renderer != nil {
		flowOpts = append(flowOpts, flow.WithRenderer(c.renderer))
	}
	if cfg.Target == content.TargetNanoX {
		flowOpts = append(flowOpts, flow.WithScreenSize(128, 128))
	}
	c.Flow = flow.New(&c.Items, &c.Buffer, c.Mux, flowOpts...)
	c.Mux.SetSink(c.Flow)

	c.App = app.New(c.Flow,
		app.WithVersion(cfg.Version),
		app.WithTarget(cfg.Target),
		app.WithSeed(cfg.Seed),
	)
	c.Dispatcher = dispatcher.New(&c.Buffer, c.Mux, c.App, c.Guard, c.Flow)

	return c, nil
}

// Run drives the command loop until the user quits or ctx ends. Quitting
// from the idle menu is a clean exit.
func (c *Context) Run(ctx context.Context) error {
	defer func() {
		if err := c.Mux.Close(); err != nil {
			log.Warnf("failed to close transport: %v", err)
		}
	}()

	err := c.Dispatcher.Run(ctx)
	if errors.Is(err, flow.ErrQuit) {
		log.Info("quit from idle menu")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
