package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskdesk.org/internal/ids"
	"taskdesk.org/internal/obs"
)

const defaultWriteTimeout = 5 * time.Second

// Recorder persists audit rows. Persistence errors are logged and counted, never returned.
type Recorder struct {
	store   Store
	feed    *Feed
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithFeed publishes every persisted entry to f.
func WithFeed(f *Feed) RecorderOption {
	return func(r *Recorder) { r.feed = f }
}

// WithWriteTimeout bounds each detached write.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, timeout: defaultWriteTimeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes the entry synchronously.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	log := obs.Logger().WithFields(logrus.Fields{
		"method":   e.Method,
		"endpoint": e.Endpoint,
		"status":   e.StatusCode,
		"resource": e.Resource,
		"audit_id": e.ID,
	})
	defer func() {
		if p := recover(); p != nil {
			obs.AuditWrite("error")
			log.WithField("audit_error", fmt.Sprint(p)).Error("audit_failed")
		}
	}()
	if err := r.store.Append(ctx, &e); err != nil {
		obs.AuditWrite("error")
		log.WithField("audit_error", err.Error()).Error("audit_failed")
		return
	}
	obs.AuditWrite("ok")
	if r.feed != nil {
		r.feed.Publish(e)
	}
}

// Dispatch records the entry on its own goroutine with a context detached from
// the request. The caller never waits for it.
func (r *Recorder) Dispatch(e Entry) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.Record(ctx, e)
	}()
}

// Wait blocks until every dispatched write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
