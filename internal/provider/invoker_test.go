package provider

import (
	"context"
	"testing"
	"time"
)

// scriptedProvider returns canned results in sequence, then repeats the last.
type scriptedProvider struct {
	name    string
	results []scriptedResult
	calls   int
}

type scriptedResult struct {
	resp *Response
	err  error
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	s.calls++
	r := s.results[idx]
	return r.resp, r.err
}

func failing(name string, err error) *scriptedProvider {
	return &scriptedProvider{name: name, results: []scriptedResult{{err: err}}}
}

func succeeding(name, text string) *scriptedProvider {
	return &scriptedProvider{name: name, results: []scriptedResult{{resp: &Response{Text: text}}}}
}

func newTestInvoker(retries int) *Invoker {
	inv := NewInvoker(BackoffPolicy{MaxRetries: retries, Base: time.Millisecond}, NewCooldownStore(time.Hour, nil), 0)
	inv.sleep = func(time.Duration) {}
	return inv
}

func TestInvokeFirstProviderSucceeds(t *testing.T) {
	inv := newTestInvoker(2)
	p1 := succeeding("p1", "hello")
	p2 := succeeding("p2", "unused")

	resp, err := inv.Invoke(context.Background(), []Provider{p1, p2}, Request{Kind: KindChat})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Provider != "p1" {
		t.Errorf("Expected success attributed to p1, got %q", resp.Provider)
	}
	if p2.calls != 0 {
		t.Errorf("Expected p2 untouched, got %d calls", p2.calls)
	}
}

func TestInvokeRetryAccounting(t *testing.T) {
	// First K providers fail with retryable errors; provider K+1 succeeds.
	// Exactly K*(retries+1)+1 calls must be made.
	retries := 2
	inv := newTestInvoker(retries)

	p1 := failing("p1", &StatusError{Code: 503, Message: "unavailable"})
	p2 := failing("p2", &StatusError{Code: 429, Message: "rate limited"})
	p3 := succeeding("p3", "finally")

	resp, err := inv.Invoke(context.Background(), []Provider{p1, p2, p3}, Request{Kind: KindChat})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Provider != "p3" {
		t.Errorf("Expected success attributed to p3, got %q", resp.Provider)
	}

	wantPerFailing := retries + 1
	if p1.calls != wantPerFailing || p2.calls != wantPerFailing {
		t.Errorf("Expected %d calls per failing provider, got p1=%d p2=%d", wantPerFailing, p1.calls, p2.calls)
	}
	if p3.calls != 1 {
		t.Errorf("Expected exactly 1 call to succeeding provider, got %d", p3.calls)
	}
}

func TestInvokeAuthFailureAdvancesImmediately(t *testing.T) {
	inv := newTestInvoker(3)

	p1 := failing("p1", &StatusError{Code: 402, Message: "quota exceeded"})
	p2 := succeeding("p2", "ok")

	resp, err := inv.Invoke(context.Background(), []Provider{p1, p2}, Request{Kind: KindChat})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p1.calls != 1 {
		t.Errorf("Expected exactly one call before auth fall-through, got %d", p1.calls)
	}
	if resp.Provider != "p2" {
		t.Errorf("Expected success attributed to p2, got %q", resp.Provider)
	}
	if !inv.cooldowns.Active("p1") {
		t.Error("Expected p1 to be cooled down after auth failure")
	}
}

func TestInvokeCooledDownProviderSkipped(t *testing.T) {
	inv := newTestInvoker(2)
	inv.cooldowns.Disable("p1", "previous 401")

	p1 := succeeding("p1", "should not be called")
	p2 := succeeding("p2", "ok")

	resp, err := inv.Invoke(context.Background(), []Provider{p1, p2}, Request{Kind: KindChat})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p1.calls != 0 {
		t.Errorf("Expected cooled-down provider to be skipped, got %d calls", p1.calls)
	}
	if resp.Provider != "p2" {
		t.Errorf("Expected success attributed to p2, got %q", resp.Provider)
	}
}

func TestInvokeRejectedSkipsRetries(t *testing.T) {
	inv := newTestInvoker(3)

	p1 := failing("p1", &StatusError{Code: 400, Message: "malformed"})
	p2 := succeeding("p2", "ok")

	if _, err := inv.Invoke(context.Background(), []Provider{p1, p2}, Request{Kind: KindChat}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p1.calls != 1 {
		t.Errorf("Expected no retries on a 400, got %d calls", p1.calls)
	}
}

func TestInvokeEmptyProviderList(t *testing.T) {
	inv := newTestInvoker(2)

	_, err := inv.Invoke(context.Background(), nil, Request{Kind: KindChat})
	if !IsExhausted(err) {
		t.Fatalf("Expected exhaustion error, got %v", err)
	}
	var exhausted *ExhaustedError
	if !asExhausted(err, &exhausted) {
		t.Fatal("Expected *ExhaustedError")
	}
	if exhausted.Attempts != 0 {
		t.Errorf("Expected zero attempts for empty list, got %d", exhausted.Attempts)
	}
}

func TestInvokeEmptyPayloadIsSoftFailure(t *testing.T) {
	inv := newTestInvoker(2)

	p1 := &scriptedProvider{name: "p1", results: []scriptedResult{{resp: &Response{}}}}
	p2 := succeeding("p2", "real content")

	resp, err := inv.Invoke(context.Background(), []Provider{p1, p2}, Request{Kind: KindChat})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p1.calls != 1 {
		t.Errorf("Expected empty payload to advance without retries, got %d calls", p1.calls)
	}
	if resp.Provider != "p2" {
		t.Errorf("Expected success attributed to p2, got %q", resp.Provider)
	}
}

func TestInvokeExhaustionDistinguishesClasses(t *testing.T) {
	inv := newTestInvoker(1)

	// All transient: unreachable.
	_, err := inv.Invoke(context.Background(), []Provider{
		failing("p1", &StatusError{Code: 500, Message: "boom"}),
	}, Request{Kind: KindChat})
	var exhausted *ExhaustedError
	if !asExhausted(err, &exhausted) || !exhausted.Unreachable {
		t.Errorf("Expected unreachable exhaustion for transient-only failures, got %v", err)
	}

	// A rejection present: rejected.
	_, err = inv.Invoke(context.Background(), []Provider{
		failing("p2", &StatusError{Code: 404, Message: "no such model"}),
	}, Request{Kind: KindChat})
	if !asExhausted(err, &exhausted) || exhausted.Unreachable {
		t.Errorf("Expected rejected exhaustion when a provider rejected, got %v", err)
	}
}

func asExhausted(err error, target **ExhaustedError) bool {
	e, ok := err.(*ExhaustedError)
	if ok {
		*target = e
	}
	return ok
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want FailureClass
	}{
		{401, ClassAuth},
		{402, ClassAuth},
		{403, ClassAuth},
		{400, ClassRejected},
		{404, ClassRejected},
		{429, ClassTransient},
		{500, ClassTransient},
		{503, ClassTransient},
	}
	for _, tt := range tests {
		if got := Classify(&StatusError{Code: tt.code}); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
