package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves events off the request path onto a single worker.
// A nil dispatcher ignores every call.
type auditDispatcher struct {
	sink     AuditSink
	queue    chan AuditEvent
	dropFull bool
	dropped  atomic.Uint64

	// mu orders sends against close(queue).
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = AuditSinkFunc(func(context.Context, AuditEvent) {})
	}

	d := &auditDispatcher{
		sink:     sink,
		queue:    make(chan AuditEvent, max(cfg.BufferSize, 1)),
		dropFull: cfg.DropIfFull,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	ctx := context.Background()
	for event := range d.queue {
		d.sink.Emit(ctx, event)
	}
}

// Emit queues event. With DropIfFull a full queue drops and counts the
// event; otherwise Emit waits for room or for ctx to end.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake and returns once queued events reached the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
