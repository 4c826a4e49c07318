package history

import (
	"sync"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecord_PrependsMostRecentFirst(t *testing.T) {
	s := NewStore()
	s.Record(NewSuccess("first"))
	s.Record(NewFailure("second"))
	s.Record(NewSuccess("third"))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("len(All) = %d, want 3", len(all))
	}
	want := []string{"third", "second", "first"}
	for i, e := range all {
		got := e.Text
		if !e.OK() {
			got = e.Error
		}
		if got != want[i] {
			t.Errorf("All()[%d] = %q, want %q", i, got, want[i])
		}
	}
}

func TestRecord_UniqueTimestampsOnClockCollision(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStoreWithClock(fixedClock(now))

	a := s.Record(NewSuccess("a"))
	b := s.Record(NewSuccess("b"))
	c := s.Record(NewSuccess("c"))

	if !b.Timestamp.After(a.Timestamp) || !c.Timestamp.After(b.Timestamp) {
		t.Fatalf("timestamps not strictly increasing: %v %v %v", a.Timestamp, b.Timestamp, c.Timestamp)
	}
	if a.ID == b.ID || b.ID == c.ID {
		t.Fatalf("IDs collide: %q %q %q", a.ID, b.ID, c.ID)
	}
	if !a.Timestamp.Equal(now) {
		t.Errorf("first timestamp = %v, want %v", a.Timestamp, now)
	}
}

func TestRecord_ClockGoingBackwards(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 3, 1, 12, 0, 5, 0, time.UTC),
		time.Date(2025, 3, 1, 12, 0, 1, 0, time.UTC),
	}
	i := 0
	s := NewStoreWithClock(func() time.Time {
		t := times[i]
		i++
		return t
	})

	a := s.Record(NewSuccess("a"))
	b := s.Record(NewSuccess("b"))
	if !b.Timestamp.After(a.Timestamp) {
		t.Errorf("b.Timestamp = %v, want after %v", b.Timestamp, a.Timestamp)
	}
}

func TestAll_StableAcrossReads(t *testing.T) {
	s := NewStore()
	s.Record(NewSuccess("x"))
	first := s.All()
	first[0].Text = "mutated"

	second := s.All()
	if second[0].Text != "x" {
		t.Errorf("All() returned shared storage: got %q", second[0].Text)
	}
}

func TestGet(t *testing.T) {
	s := NewStore()
	a := s.Record(NewSuccess("a"))
	b := s.Record(NewFailure("b"))

	got, ok := s.Get(a.ID)
	if !ok || got.Text != "a" {
		t.Errorf("Get(a) = %+v, %v", got, ok)
	}
	got, ok = s.Get(b.ID)
	if !ok || got.Error != "b" {
		t.Errorf("Get(b) = %+v, %v", got, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) returned ok")
	}
}

func TestRecent(t *testing.T) {
	s := NewStore()
	for _, txt := range []string{"1", "2", "3", "4"} {
		s.Record(NewSuccess(txt))
	}

	tests := []struct {
		limit, offset int
		want          []string
	}{
		{2, 0, []string{"4", "3"}},
		{2, 2, []string{"2", "1"}},
		{0, 1, []string{"3", "2", "1"}},
		{10, 3, []string{"1"}},
		{5, 9, nil},
	}
	for _, tt := range tests {
		got := s.Recent(tt.limit, tt.offset)
		if len(got) != len(tt.want) {
			t.Errorf("Recent(%d, %d) len = %d, want %d", tt.limit, tt.offset, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].Text != tt.want[i] {
				t.Errorf("Recent(%d, %d)[%d] = %q, want %q", tt.limit, tt.offset, i, got[i].Text, tt.want[i])
			}
		}
	}
}

func TestNewFailure_EmptyMessage(t *testing.T) {
	e := NewFailure("")
	if e.Error == "" {
		t.Fatal("failure entry with empty error")
	}
	if e.Text != "" || e.OK() {
		t.Errorf("failure entry looks like success: %+v", e)
	}
}

func TestSubscribe(t *testing.T) {
	s := NewStore()
	var got []string
	cancel := s.Subscribe(func(e Entry) { got = append(got, e.Text) })

	s.Record(NewSuccess("a"))
	cancel()
	cancel()
	s.Record(NewSuccess("b"))

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("observer saw %v, want [a]", got)
	}
}

func TestSubscribe_ObserverMayReadStore(t *testing.T) {
	s := NewStore()
	var n int
	s.Subscribe(func(Entry) { n = s.Len() })
	s.Record(NewSuccess("a"))
	if n != 1 {
		t.Errorf("observer saw Len = %d, want 1", n)
	}
}

func TestConcurrentReaders(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.All()
				s.Len()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		s.Record(NewSuccess("x"))
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, e := range s.All() {
		if seen[e.ID] {
			t.Fatalf("duplicate ID %q", e.ID)
		}
		seen[e.ID] = true
	}
}
