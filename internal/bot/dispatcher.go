package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ovsov/tecret-anta/internal/i18n"
)

// Handler applies one event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type DispatcherConfig struct {
	Handler   Handler
	Transport Transport
	Catalog   *i18n.Catalog
	Locale    string
	Logger    *slog.Logger
	// Workers bounds how many users are served at once.
	Workers int
}

// Dispatcher is the top-level supervisor. Events of one user are handled
// in arrival order by a single worker; different users run in parallel. A
// failing or panicking event is logged and answered with a retry message,
// and serving continues.
type Dispatcher struct {
	handler   Handler
	transport Transport
	catalog   *i18n.Catalog
	locale    string
	log       *slog.Logger
	workers   int

	mu     sync.Mutex
	queues map[int64][]Event
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		handler:   cfg.Handler,
		transport: cfg.Transport,
		catalog:   cfg.Catalog,
		locale:    cfg.Locale,
		log:       cfg.Logger,
		workers:   cfg.Workers,
		queues:    make(map[int64][]Event),
	}
	if d.catalog == nil {
		d.catalog = i18n.MustLoad()
	}
	if d.locale == "" {
		d.locale = i18n.BaseLocale
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.workers <= 0 {
		d.workers = 1
	}
	return d
}

// Serve reads events until the channel closes or ctx is done, then waits
// for the in-flight workers.
func (d *Dispatcher) Serve(ctx context.Context, events <-chan Event) error {
	var g errgroup.Group
	g.SetLimit(d.workers)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			if d.enqueue(ev) {
				g.Go(func() error {
					d.drain(ctx, ev)
					return nil
				})
			}
		}
	}
	return g.Wait()
}

// enqueue reports whether ev needs a new worker; otherwise it was queued
// behind the user's running one.
func (d *Dispatcher) enqueue(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	userID := ev.From().UserID
	if queue, busy := d.queues[userID]; busy {
		d.queues[userID] = append(queue, ev)
		return false
	}
	d.queues[userID] = nil
	return true
}

func (d *Dispatcher) drain(ctx context.Context, ev Event) {
	userID := ev.From().UserID
	for {
		d.Handle(ctx, ev)

		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		ev, d.queues[userID] = queue[0], queue[1:]
		d.mu.Unlock()
	}
}

// Handle runs one event through the handler, recovering panics.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	sender := ev.From()
	err := d.safeHandle(ctx, ev)
	if err == nil {
		return
	}
	d.log.Error("event failed",
		"user_id", sender.UserID,
		"chat_id", sender.ChatID,
		"error", err)
	if sender.ChatID == 0 {
		return
	}
	text := d.catalog.PrinterFor(sender.Locale, d.locale).Sprintf(i18n.Retry)
	if _, err := d.transport.Send(ctx, sender.ChatID, Message{Text: text}); err != nil {
		d.log.Warn("send retry message failed", "chat_id", sender.ChatID, "error", err)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return d.handler.Handle(ctx, ev)
}
