package resilience

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(failures int) (*CircuitBreaker, *fakeClock, *[]string) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var changes []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: failures,
		Cooldown:    time.Second,
		OnStateChange: func(_ string, from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})
	cb.now = clock.now
	return cb, clock, &changes
}

var errFail = errors.New("fail")

func fail() error    { return errFail }
func succeed() error { return nil }

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _, _ := newTestBreaker(3)

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	if cb.Failures() != 0 {
		t.Fatalf("success should reset failures, got %d", cb.Failures())
	}

	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	err := cb.Execute(func() error {
		t.Error("function should not have been called")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock, changes := newTestBreaker(1)
	_ = cb.Execute(fail)

	clock.advance(time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error { <-release; return nil })
	}()
	// A second call while the probe is in flight is rejected.
	deadline := time.Now().Add(time.Second)
	for {
		cb.mu.Lock()
		probing := cb.probing
		cb.mu.Unlock()
		if probing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("probe never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected concurrent call to be rejected, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if cb.State() != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", cb.State())
	}
	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(*changes) != len(want) {
		t.Fatalf("transitions = %v, want %v", *changes, want)
	}
	for i := range want {
		if (*changes)[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", *changes, want)
		}
	}
}

func TestCircuitBreaker_ReopensOnFailedProbe(t *testing.T) {
	cb, clock, _ := newTestBreaker(1)
	_ = cb.Execute(fail)
	clock.advance(time.Second)

	if err := cb.Execute(fail); !errors.Is(err, errFail) {
		t.Fatalf("probe should have run, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}
	clock.advance(500 * time.Millisecond)
	if cb.State() != StateOpen {
		t.Fatal("cooldown restarted from the failed probe")
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(9):      "unknown",
	} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
