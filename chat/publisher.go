package chat

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/pipeline"
)

// Observer receives the events of a published session. Calls for one
// subscriber never overlap and arrive in stream order; at most one of
// OnComplete or OnError is called, and nothing follows it.
type Observer interface {
	OnNext(Chunk)
	OnComplete()
	OnError(error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Next     func(Chunk)
	Complete func()
	Error    func(error)
}

func (f ObserverFuncs) OnNext(c Chunk) {
	if f.Next != nil {
		f.Next(c)
	}
}

func (f ObserverFuncs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

func (f ObserverFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// PublishOption configures a Publisher.
type PublishOption func(*publishConfig)

type publishConfig struct {
	autoConnect int
}

// WithAutoConnect delays connecting until n subscribers are attached.
// Values below 1 mean 1.
func WithAutoConnect(n int) PublishOption {
	return func(c *publishConfig) { c.autoConnect = max(n, 1) }
}

// Publisher multicasts one session to its subscribers. A single producer
// goroutine reads the session and delivers each event to every attached
// subscriber in subscription order. Subscribers that attach mid-stream
// see only later events; subscribers that attach after the end get just
// the terminal event.
type Publisher struct {
	ctx         context.Context
	stream      *Stream
	autoConnect int
	log         *logger.Logger

	mu        sync.Mutex
	subs      []*Subscription
	started   bool
	done      bool
	err       error
	doneCh    chan struct{}
	stopWatch func() bool
}

func newPublisher(ctx context.Context, stream *Stream, opts ...PublishOption) *Publisher {
	cfg := publishConfig{autoConnect: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Publisher{
		ctx:         ctx,
		stream:      stream,
		autoConnect: cfg.autoConnect,
		log:         stream.log,
		doneCh:      make(chan struct{}),
	}
	// Before the producer starts nothing else watches ctx.
	p.mu.Lock()
	p.stopWatch = context.AfterFunc(ctx, func() {
		p.abort(errors.Canceled(context.Cause(ctx)))
	})
	p.mu.Unlock()
	return p
}

// SessionID identifies the underlying session.
func (p *Publisher) SessionID() string { return p.stream.SessionID() }

// Subscribe attaches obs. The subscriber that brings the count to the
// auto-connect threshold starts the producer.
func (p *Publisher) Subscribe(obs Observer) *Subscription {
	sub := &Subscription{
		id:   uuid.NewString(),
		pub:  p,
		obs:  obs,
		done: make(chan struct{}),
	}
	sub.active.Store(true)

	p.mu.Lock()
	if p.done {
		err := p.err
		p.mu.Unlock()
		sub.terminate(err)
		return sub
	}
	p.subs = append(p.subs, sub)
	start := !p.started && len(p.subs) >= p.autoConnect
	if start {
		p.started = true
	}
	count := len(p.subs)
	p.mu.Unlock()

	p.log.Debug("chat subscriber attached", map[string]interface{}{
		"subscription_id": sub.id,
		"subscribers":     count,
	})
	if start {
		go p.run()
	}
	return sub
}

// Done is closed once the session has ended and every attached subscriber
// has received the terminal event.
func (p *Publisher) Done() <-chan struct{} { return p.doneCh }

// Err returns the session's terminal error once Done is closed.
func (p *Publisher) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Publisher) run() {
	p.mu.Lock()
	stop := p.stopWatch
	p.mu.Unlock()
	stop()

	err := pipeline.Drain(pipeline.From[Chunk](p.stream), func(_ context.Context, c Chunk) error {
		for _, sub := range p.snapshot() {
			if sub.active.Load() {
				sub.obs.OnNext(c)
			}
		}
		return nil
	}).Run(p.ctx)

	p.mu.Lock()
	p.done, p.err = true, err
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(err)
	}
	close(p.doneCh)
}

func (p *Publisher) snapshot() []*Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.subs)
}

func (p *Publisher) remove(sub *Subscription) {
	p.mu.Lock()
	p.subs = slices.DeleteFunc(p.subs, func(s *Subscription) bool { return s == sub })
	last := len(p.subs) == 0 && !p.done
	started := p.started
	p.mu.Unlock()

	switch {
	case !last:
	case started:
		// Nobody is listening; release the connection.
		_ = p.stream.Close()
	default:
		p.abort(errors.Canceled(ErrClosed))
	}
}

// abort ends a publisher whose producer never started: the session is
// closed, pending subscribers get err and later ones take the late path.
// It is a no-op once the producer runs.
func (p *Publisher) abort(err error) {
	p.mu.Lock()
	if p.started || p.done {
		p.mu.Unlock()
		return
	}
	p.done, p.err = true, err
	subs := p.subs
	p.subs = nil
	stop := p.stopWatch
	p.mu.Unlock()

	stop()
	_ = p.stream.Close()
	for _, sub := range subs {
		sub.terminate(err)
	}
	close(p.doneCh)
	p.log.Debug("chat publisher ended before connecting", map[string]interface{}{
		logger.FieldErrorCode: string(errors.CodeOf(err)),
		"subscribers":         len(subs),
	})
}

// Subscription is one observer's attachment to a Publisher.
type Subscription struct {
	id     string
	pub    *Publisher
	obs    Observer
	active atomic.Bool
	once   sync.Once
	done   chan struct{}
	err    error
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// Unsubscribe detaches the observer; no events are delivered after it
// returns, except one already in progress on the producer goroutine.
// Removing the last subscriber cancels the session.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.once.Do(func() { close(s.done) })
	s.pub.remove(s)
}

// Done is closed after the terminal event was delivered or the
// subscription was cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err waits for Done and returns the error delivered to this subscriber.
// It is nil after completion or Unsubscribe.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

func (s *Subscription) terminate(err error) {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.once.Do(func() {
		s.err = err
		if err != nil {
			s.obs.OnError(err)
		} else {
			s.obs.OnComplete()
		}
		close(s.done)
	})
}
