package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := ": keepalive\n" +
		"data: {\"id\":\"PNG-1\"}\n\n" +
		"event: update\r\nid: 7\r\ndata: line one\r\ndata: line two\r\n\r\n" +
		"event: empty\n\n" +
		"data:no-space\n\n"
	var got []Event
	require.NoError(t, Parse(strings.NewReader(in), func(ev Event) { got = append(got, ev) }))

	require.Len(t, got, 3)
	assert.Equal(t, Event{Data: `{"id":"PNG-1"}`}, got[0])
	assert.Equal(t, Event{ID: "7", Name: "update", Data: "line one\nline two"}, got[1])
	assert.Equal(t, "no-space", got[2].Data)
	assert.Equal(t, "7", got[2].ID, "last event id carries over")
}

func fastPolicy(retries uint64) Policy {
	return Policy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		MaxRetries:      retries,
	}
}

func httpOpener(url string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.New(resp.Status)
		}
		return resp.Body, nil
	}
}

func TestListener_SuccessResetsRetryBudget(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if conns.Add(1) == 2 {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Write([]byte("data: {\"id\":\"PNG-1\",\"weight\":4.2}\n\n"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var events []Event
	l := NewListener(httpOpener(srv.URL), func(_ context.Context, ev Event) error {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		return nil
	}, fastPolicy(2), zerolog.Nop(), nil)

	var connects, disconnects int
	l.OnConnect = func() { connects++ }
	l.OnDisconnect = func(error) { disconnects++ }

	err := l.Run(context.Background())
	require.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, int32(4), conns.Load())
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Data, "PNG-1")
}

func TestListener_HandlerErrorKeepsStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("data: bad\n\ndata: good\n\n"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []string
	l := NewListener(httpOpener(srv.URL), func(_ context.Context, ev Event) error {
		seen = append(seen, ev.Data)
		if len(seen) == 2 {
			cancel()
		}
		if ev.Data == "bad" {
			return errors.New("parse failure")
		}
		return nil
	}, fastPolicy(0), zerolog.Nop(), nil)

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"bad", "good"}, seen)
}

func TestListener_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var attempts atomic.Int32
	l := NewListener(func(context.Context) (io.ReadCloser, error) {
		if attempts.Add(1) == 3 {
			cancel()
		}
		return nil, errors.New("refused")
	}, func(context.Context, Event) error { return nil }, fastPolicy(0), zerolog.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestPolicy_BackOffCapped(t *testing.T) {
	p := Policy{InitialInterval: 10 * time.Millisecond, MaxInterval: 40 * time.Millisecond, Multiplier: 2}
	b := p.backOff(context.Background())
	var last time.Duration
	for i := 0; i < 10; i++ {
		last = b.NextBackOff()
		assert.LessOrEqual(t, last, 40*time.Millisecond)
	}
	assert.Equal(t, 40*time.Millisecond, last)
}

func TestPolicy_ZeroIntervalsAreFloored(t *testing.T) {
	b := Policy{}.backOff(context.Background())
	for i := 0; i < 5; i++ {
		assert.GreaterOrEqual(t, b.NextBackOff(), minInterval)
	}
}
