package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("api failure (%d)", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 128})
	var (
		mu  sync.Mutex
		got = map[string][]int{}
	)
	for i := 0; i < 50; i++ {
		for _, room := range []string{"a", "b", "c"} {
			room, i := room, i
			err := d.Enqueue(context.Background(), room, "send", func(context.Context) error {
				mu.Lock()
				got[room] = append(got[room], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for room, seq := range got {
		if len(seq) != 50 {
			t.Fatalf("room %s: %d jobs", room, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("room %s out of order: %v", room, seq)
			}
		}
	}
	if d.Sent() != 150 || d.ErrorCount() != 0 {
		t.Fatalf("sent=%d errs=%d", d.Sent(), d.ErrorCount())
	}
}

func TestDispatcherRetriesTransientStatus(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "room", "send", func(context.Context) error {
		if calls.Add(1) < 3 {
			return statusErr(503)
		}
		return nil
	})
	d.Close()
	if calls.Load() != 3 || d.Sent() != 1 {
		t.Fatalf("calls=%d sent=%d", calls.Load(), d.Sent())
	}
}

func TestDispatcherDoesNotRetryClientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "room", "send", func(context.Context) error {
		calls.Add(1)
		return statusErr(400)
	})
	_ = d.Enqueue(context.Background(), "room", "send", func(context.Context) error {
		panic("boom")
	})
	d.Close()
	if calls.Load() != 1 || d.ErrorCount() != 2 {
		t.Fatalf("calls=%d errs=%d", calls.Load(), d.ErrorCount())
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), "k", "send", func(context.Context) error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestEnqueueRunsDespiteCancelledContext(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	_ = d.Enqueue(ctx, "k", "send", func(context.Context) error { ran = true; return nil })
	d.Close()
	if !ran {
		t.Fatal("queued replies must be delivered after the producer context ends")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		{statusErr(429), "rate_limited"},
		{statusErr(502), "http_5xx"},
		{fmt.Errorf("wrapped: %w", statusErr(403)), "http_4xx"},
		{errors.New("telegram: Bad Request (400)"), "http_4xx"},
		{errors.New("mystery"), "unknown"},
	}
	for _, tc := range cases {
		if got := classifyError(tc.err); got != tc.want {
			t.Fatalf("classifyError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New("Post https://api.telegram.org/bot123456:ABC-def_ghi/sendMessage: timeout")
	if got := sanitizeErrorMessage(err); got != "Post https://api.telegram.org/<redacted>/sendMessage: timeout" {
		t.Fatalf("got %q", got)
	}
}
