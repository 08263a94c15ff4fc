package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestPolicy_Do(t *testing.T) {
	transient := statusErr(503)
	permanent := statusErr(400)

	tests := []struct {
		name         string
		policy       Policy
		failures     []error
		wantCalls    int
		wantErr      bool
		wantExhaust  bool
		wantSentinel error
	}{
		{
			name:      "succeeds first time",
			policy:    Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
			wantCalls: 1,
		},
		{
			name:      "recovers after transient failures",
			policy:    Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
			failures:  []error{transient, transient},
			wantCalls: 3,
		},
		{
			name:         "stops on permanent error",
			policy:       Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
			failures:     []error{permanent},
			wantCalls:    1,
			wantErr:      true,
			wantSentinel: permanent,
		},
		{
			name:         "exhausts attempts",
			policy:       Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
			failures:     []error{transient, transient, transient},
			wantCalls:    2,
			wantErr:      true,
			wantExhaust:  true,
			wantSentinel: transient,
		},
		{
			name:      "custom predicate",
			policy:    Policy{MaxAttempts: 3, Retryable: func(err error) bool { return errors.Is(err, errMalformed) }},
			failures:  []error{errMalformed},
			wantCalls: 2,
		},
		{
			name:      "zero attempts treated as one",
			policy:    Policy{},
			failures:  []error{transient},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := tt.policy.Do(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantExhaust && !errors.Is(err, ErrExhausted) {
				t.Errorf("Do() error = %v, want ErrExhausted", err)
			}
			if tt.wantSentinel != nil && !errors.Is(err, tt.wantSentinel) {
				t.Errorf("Do() error = %v, want to wrap %v", err, tt.wantSentinel)
			}
		})
	}
}

var errMalformed = errors.New("malformed")

func TestPolicy_DoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context) error {
			calls++
			return statusErr(503)
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicy_AttemptTimeout(t *testing.T) {
	p := Policy{MaxAttempts: 2, AttemptTimeout: 5 * time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil after retrying a timed-out attempt", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", statusErr(429)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("DoValue() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("DoValue() = %q, want ok", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "rate limited", err: statusErr(429), want: true},
		{name: "server error", err: fmt.Errorf("wrapped: %w", statusErr(502)), want: true},
		{name: "bad request", err: statusErr(400), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := Jitter(base)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("Jitter(%v) = %v, out of +-20%% range", base, got)
		}
	}
	if Jitter(0) != 0 {
		t.Error("Jitter(0) should be 0")
	}
}
