package plancache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLookupBuildsOnceAndCaches(t *testing.T) {
	c := New()
	defer c.Close()

	builds := 0
	build := func(text string) (Plan, error) {
		builds++
		return Plan{Text: text, Name: strings.ToUpper(strings.Fields(text)[0])}, nil
	}

	p, err := c.Lookup("get user:1", build)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.Name != "GET" {
		t.Fatalf("unexpected plan: %+v", p)
	}
	if _, err := c.Lookup("get user:1", build); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if builds != 1 {
		t.Fatalf("expected a single build, got %d", builds)
	}
}

func TestLookupBuildErrorNotCached(t *testing.T) {
	c := New()
	defer c.Close()

	boom := errors.New("boom")
	if _, err := c.Lookup("bad", func(string) (Plan, error) { return Plan{}, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	p, err := c.Lookup("bad", func(text string) (Plan, error) { return Plan{Text: text, Name: "BAD"}, nil })
	if err != nil || p.Name != "BAD" {
		t.Fatalf("failed build was cached: %+v %v", p, err)
	}
}

func TestTTLExpiresEntries(t *testing.T) {
	c := New(WithTTL(20 * time.Millisecond))
	defer c.Close()

	builds := 0
	build := func(text string) (Plan, error) {
		builds++
		return Plan{Text: text, Name: "SET"}, nil
	}
	if _, err := c.Lookup("set k v", build); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := c.Lookup("set k v", build); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if builds != 2 {
		t.Fatalf("expected rebuild after expiry, got %d builds", builds)
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	defer c.Close()

	builds := 0
	build := func(text string) (Plan, error) {
		builds++
		return Plan{Text: text}, nil
	}
	_, _ = c.Lookup("del k", build)
	c.Invalidate("del k")
	_, _ = c.Lookup("del k", build)
	if builds != 2 {
		t.Fatalf("expected rebuild after invalidate, got %d builds", builds)
	}
}
