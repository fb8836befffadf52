package background

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/chefguard/internal/metrics"
	"github.com/BradenHooton/chefguard/internal/models"
)

// LockoutSender delivers a single lockout notification
type LockoutSender interface {
	Send(ctx context.Context, notification models.LockoutNotification) (string, error)
}

// LockoutDispatcher hands lockout notifications to a single worker so the
// rate-limit response never waits on email delivery. Notifications that do
// not fit in the buffer are dropped. Failed sends are logged and not retried.
type LockoutDispatcher struct {
	sender      LockoutSender
	ch          chan models.LockoutNotification
	done        chan struct{}
	wg          sync.WaitGroup
	dropped     atomic.Uint64
	mu          sync.RWMutex // guards closed against in-flight Publish calls
	closed      bool
	sendTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewLockoutDispatcher starts the worker goroutine
func NewLockoutDispatcher(sender LockoutSender, bufferSize int, m *metrics.Metrics, logger *slog.Logger) *LockoutDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &LockoutDispatcher{
		sender:      sender,
		ch:          make(chan models.LockoutNotification, bufferSize),
		done:        make(chan struct{}),
		sendTimeout: 15 * time.Second,
		metrics:     m,
		logger:      logger,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *LockoutDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *LockoutDispatcher) deliver(n models.LockoutNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if _, err := d.sender.Send(ctx, n); err != nil {
		d.logger.Warn("lockout notification not delivered",
			slog.String("notification_id", n.ID),
			slog.Any("error", err))
	}
}

// Publish enqueues n without blocking. It returns false when n was dropped.
func (d *LockoutDispatcher) Publish(n models.LockoutNotification) bool {
	if d == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.ch <- n:
		return true
	default:
		d.dropped.Add(1)
		d.metrics.NotificationDropped()
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be sent
func (d *LockoutDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}

// Dropped returns how many notifications were discarded because the buffer was full
func (d *LockoutDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
