package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newStringGroup(names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup(names[0], names[0], FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := newStringGroup("primary", "secondary")

	var tried []string
	err := fg.Execute(func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(tried, []string{"primary"}) {
		t.Fatalf("tried = %v, want [primary]", tried)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	fg := newStringGroup("primary", "secondary", "tertiary")

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v != "tertiary" {
			return "", errTest
		}
		return "ok from " + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok from tertiary" {
		t.Fatalf("got %q", got)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := newStringGroup("primary", "secondary")

	err := fg.Execute(func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Errorf("err = %v, want the last provider error wrapped", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	fg := newStringGroup("primary", "secondary")

	failPrimary := func(v string) error {
		if v == "primary" {
			return errTest
		}
		return nil
	}
	_ = fg.Execute(failPrimary)
	_ = fg.Execute(failPrimary)

	var tried []string
	_ = fg.Execute(func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if !slices.Equal(tried, []string{"secondary"}) {
		t.Fatalf("tried = %v, want [secondary] once primary's breaker is open", tried)
	}
}

func TestFallbackGroup_PermanentErrorStops(t *testing.T) {
	fg := newStringGroup("primary", "secondary")

	var tried []string
	err := fg.Execute(func(v string) error {
		tried = append(tried, v)
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want bare context.Canceled", err)
	}
	if len(tried) != 1 {
		t.Errorf("tried = %v, want only the primary", tried)
	}
}

func TestFallbackGroup_CustomPermanent(t *testing.T) {
	errBadRequest := errors.New("bad request")
	fg := NewFallbackGroup("a", "a", FallbackConfig{
		Permanent: func(err error) bool { return errors.Is(err, errBadRequest) },
	})
	fg.AddFallback("b", "b")

	calls := 0
	err := fg.Execute(func(string) error { calls++; return errBadRequest })
	if !errors.Is(err, errBadRequest) || calls != 1 {
		t.Fatalf("err = %v after %d calls, want errBadRequest after 1", err, calls)
	}
}

func TestFallbackGroup_NamesAndPrimary(t *testing.T) {
	fg := newStringGroup("openai", "anthropic", "ollama")
	if got := fg.Names(); !slices.Equal(got, []string{"openai", "anthropic", "ollama"}) {
		t.Errorf("Names() = %v", got)
	}
	if fg.Primary() != "openai" {
		t.Errorf("Primary() = %q", fg.Primary())
	}
}
