// Package stream keeps a single live update subscription open and reconnects
// with capped exponential backoff when it drops.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/metrics"
)

// ErrGaveUp is returned by Run once the retry budget is spent.
var ErrGaveUp = errors.New("stream: retry budget exhausted")

// Policy configures reconnection. MaxRetries counts consecutive failed
// attempts; zero retries forever.
type Policy struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxRetries          uint64
}

// DefaultPolicy starts at the historical 300ms delay and caps at 30s.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval:     300 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

// minInterval floors the reconnect delay so a zero policy cannot spin.
const minInterval = time.Millisecond

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = max(p.InitialInterval, minInterval)
	eb.MaxInterval = max(p.MaxInterval, eb.InitialInterval)
	if p.Multiplier > 0 {
		eb.Multiplier = p.Multiplier
	}
	eb.RandomizationFactor = p.RandomizationFactor
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}

// Opener opens one subscription. The listener closes the returned body.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Handler receives every event. A returned error is logged and the stream
// keeps going.
type Handler func(ctx context.Context, ev Event) error

// Listener owns the subscription. Only one connection is open at a time.
type Listener struct {
	open    Opener
	handle  Handler
	policy  Policy
	log     zerolog.Logger
	metrics *metrics.Metrics

	OnConnect    func()
	OnDisconnect func(err error)
}

func NewListener(open Opener, handle Handler, policy Policy, log zerolog.Logger, m *metrics.Metrics) *Listener {
	return &Listener{open: open, handle: handle, policy: policy, log: log, metrics: m}
}

// Run blocks until ctx is cancelled or the retry budget is exhausted.
func (l *Listener) Run(ctx context.Context) error {
	b := l.policy.backOff(ctx)
	for {
		connected, err := l.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			b.Reset()
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrGaveUp, err)
		}
		l.metrics.StreamReconnect()
		l.log.Warn().Err(err).Dur("retry_in", wait).Msg("live update stream lost, reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// consume holds one connection until it ends. connected reports whether the
// subscription was established at all.
func (l *Listener) consume(ctx context.Context) (connected bool, err error) {
	body, err := l.open(ctx)
	if err != nil {
		return false, err
	}
	defer body.Close()

	l.metrics.StreamConnected(true)
	if l.OnConnect != nil {
		l.OnConnect()
	}
	l.log.Info().Msg("live update stream connected")

	err = Parse(body, func(ev Event) {
		l.metrics.StreamEvent()
		if herr := l.handle(ctx, ev); herr != nil {
			l.log.Error().Err(herr).Str("event_id", ev.ID).Msg("failed to handle live update")
		}
	})
	if err == nil {
		err = io.EOF
	}

	l.metrics.StreamConnected(false)
	if l.OnDisconnect != nil {
		l.OnDisconnect(err)
	}
	return true, err
}
