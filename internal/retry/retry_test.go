package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &HTTPStatusError{Service: "TMDB", StatusCode: 503}
		}
		return nil
	}, 3, time.Millisecond)

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return &HTTPStatusError{Service: "TMDB", StatusCode: 404}
	}, 5, time.Millisecond)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for 404, got %d", calls)
	}
}

func TestRetry_SingleAttemptDoesNotRetry(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), func() error {
		calls++
		return &HTTPStatusError{Service: "TMDB", StatusCode: 500}
	}, 1, time.Millisecond)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, func() error {
		calls++
		return &HTTPStatusError{Service: "TMDB", StatusCode: 502}
	}, 5, time.Second)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected cancellation after first attempt, got %d calls", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &HTTPStatusError{StatusCode: 500}, true},
		{"wrapped server error", fmt.Errorf("get: %w", &HTTPStatusError{StatusCode: 504}), true},
		{"not found", &HTTPStatusError{StatusCode: 404}, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tc := range testCases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(&HTTPStatusError{StatusCode: 429}) {
		t.Error("expected 429 to be rate limited")
	}
	if IsRateLimited(&HTTPStatusError{StatusCode: 500}) {
		t.Error("expected 500 not to be rate limited")
	}
	if IsRateLimited(nil) {
		t.Error("expected nil not to be rate limited")
	}
}
