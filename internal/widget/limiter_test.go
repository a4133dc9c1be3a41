package widget

import (
	"testing"
	"time"
)

func TestVisitorLimiterPerVisitor(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newVisitorLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.reserve("anon_a"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	ok, retry := l.reserve("anon_a")
	if ok {
		t.Fatal("third request allowed")
	}
	if retry <= 0 || retry > 30*time.Second {
		t.Fatalf("retry after = %v, want (0, 30s]", retry)
	}

	if ok, _ := l.reserve("anon_b"); !ok {
		t.Fatal("other visitor throttled")
	}

	now = now.Add(30 * time.Second)
	if ok, _ := l.reserve("anon_a"); !ok {
		t.Fatal("token not refilled after interval")
	}
}

func TestVisitorLimiterEvict(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newVisitorLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	l.reserve("anon_a")
	now = now.Add(45 * time.Second)
	l.reserve("anon_b")
	now = now.Add(30 * time.Second)

	if n := l.evict(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, ok := l.visitors["anon_b"]; !ok {
		t.Fatal("recent visitor evicted")
	}
}
