package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesTransientUpToBudget(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0
	wantErr := errors.New("connection reset")
	err := p.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_RecoversMidBudget(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	p := Policy{MaxAttempts: 5, Delay: time.Millisecond}
	calls := 0
	wantErr := errors.New("400 bad request")
	err := p.Do(context.Background(), func() error {
		calls++
		return Permanent(wantErr)
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if IsPermanent(err) {
		t.Error("returned error should be unwrapped from its permanent marker")
	}
}

func TestDo_ContextCancelBetweenAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 10, Delay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func() error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ZeroAttemptsStillRunsOnce(t *testing.T) {
	p := Policy{}
	calls := 0
	_ = p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
