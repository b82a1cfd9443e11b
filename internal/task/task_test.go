package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	tk := Run(context.Background(), func(ctx context.Context) (string, error) {
		return "hola", nil
	})

	v, err := tk.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hola" {
		t.Errorf("expected 'hola', got %q", v)
	}
	if !tk.IsSuccessful() || tk.IsCanceled() {
		t.Error("expected successful, non-canceled task")
	}
}

func TestRun_CanceledContextSkipsFn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	tk := Run(ctx, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	<-tk.Done()

	if called {
		t.Error("fn should not run on a canceled context")
	}
	if !tk.IsCanceled() {
		t.Error("expected canceled task")
	}
}

func TestCanceled(t *testing.T) {
	tk := Canceled[string]()
	if !tk.IsComplete() {
		t.Fatal("expected completed task")
	}
	if !tk.IsCanceled() {
		t.Error("expected canceled task")
	}
	if _, err := tk.Result(); !errors.Is(err, ErrCanceled) {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
}

func TestFailedIsNotCanceled(t *testing.T) {
	tk := Failed[string](errors.New("model unavailable"))
	if tk.IsCanceled() {
		t.Error("failure must not be reported as cancellation")
	}
	if tk.IsSuccessful() {
		t.Error("failure must not be reported as success")
	}
}

func TestThen_ChainsOnSuccess(t *testing.T) {
	ctx := context.Background()
	first := Run(ctx, func(ctx context.Context) (int, error) { return 2, nil })
	second := Then(ctx, first, func(ctx context.Context, v int) (int, error) { return v * 21, nil })

	v, err := second.Await(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestThen_PropagatesFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("download failed")
	first := Failed[struct{}](boom)

	called := false
	second := Then(ctx, first, func(ctx context.Context, _ struct{}) (string, error) {
		called = true
		return "x", nil
	})

	_, err := second.Await(ctx)
	if !errors.Is(err, boom) {
		t.Errorf("expected propagated error, got %v", err)
	}
	if called {
		t.Error("continuation must not run after failure")
	}
}

func TestOnComplete_RunsInRegistrationOrder(t *testing.T) {
	release := make(chan struct{})
	tk := Run(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		tk.OnComplete(func(*Task[int]) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	done := make(chan struct{})
	tk.OnComplete(func(*Task[int]) { close(done) })
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listeners did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("unexpected listener order: %v", order)
	}
}

func TestOnComplete_AfterCompletionRunsImmediately(t *testing.T) {
	tk := Completed("done")
	ran := false
	tk.OnComplete(func(*Task[string]) { ran = true })
	if !ran {
		t.Error("listener on completed task should run synchronously")
	}
}

func TestAwait_ContextDeadline(t *testing.T) {
	tk := Run(context.Background(), func(ctx context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := tk.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestIsCanceled(t *testing.T) {
	if !IsCanceled(context.Canceled) {
		t.Error("context.Canceled should count as cancellation")
	}
	if IsCanceled(context.DeadlineExceeded) {
		t.Error("deadline is a failure, not a cancellation")
	}
	if IsCanceled(nil) {
		t.Error("nil is not a cancellation")
	}
}
