package audit

import (
	"context"
	"sync"
)

// chanSize is the audit queue depth. Entries beyond it are dropped.
const chanSize = 256

// Logger is the logging surface the writer needs.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Writer queues entries and writes them one at a time.
type Writer struct {
	repo   Repository
	logger Logger
	ch     chan *Entry

	once sync.Once
	done chan struct{}
}

// NewWriter returns a Writer over repo. Call Run to start draining.
func NewWriter(repo Repository, logger Logger) *Writer {
	return &Writer{
		repo:   repo,
		logger: logger,
		ch:     make(chan *Entry, chanSize),
		done:   make(chan struct{}),
	}
}

// Record enqueues e without blocking. A full queue drops the entry.
func (w *Writer) Record(e *Entry) {
	select {
	case w.ch <- e:
	default:
		w.logger.Warn("audit queue full, dropping entry", "action", e.Action, "event", e.Event)
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left and returns.
func (w *Writer) Run(ctx context.Context) {
	defer w.once.Do(func() { close(w.done) })

	for {
		select {
		case e := <-w.ch:
			w.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-w.ch:
					w.write(e)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) write(e *Entry) {
	// Detached so entries drained during shutdown still land.
	if err := w.repo.Create(context.Background(), e); err != nil {
		w.logger.Error("audit write failed", "action", e.Action, "event", e.Event, "error", err)
	}
}
