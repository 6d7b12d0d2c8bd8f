package session

import (
	"fmt"
	"testing"
)

func makeTracks(n int) []*Track {
	out := make([]*Track, n)
	for i := range out {
		out[i] = &Track{Title: fmt.Sprintf("t%d", i)}
	}
	return out
}

func TestQueueFIFO(t *testing.T) {
	var q queue
	tracks := makeTracks(3)
	for _, tr := range tracks {
		q.push(tr)
	}
	for i, want := range tracks {
		got, ok := q.popFront()
		if !ok || got != want {
			t.Fatalf("pop %d = %v, want %s", i, got, want.Title)
		}
	}
	if _, ok := q.popFront(); ok {
		t.Errorf("pop on empty queue succeeded")
	}
}

func TestQueueDrain(t *testing.T) {
	var q queue
	tracks := makeTracks(4)
	for _, tr := range tracks {
		q.push(tr)
	}
	out := q.drain()
	if len(out) != 4 {
		t.Fatalf("drained %d, want 4", len(out))
	}
	if q.len() != 0 {
		t.Errorf("queue length after drain = %d", q.len())
	}
	if out[0] != tracks[0] || out[3] != tracks[3] {
		t.Errorf("drain did not preserve order")
	}
}

func TestQueuePage(t *testing.T) {
	var q queue
	for _, tr := range makeTracks(25) {
		q.push(tr)
	}

	tests := []struct {
		name      string
		page      int
		pageSize  int
		wantLen   int
		wantFirst string
	}{
		{"first page", 1, 10, 10, "t0"},
		{"second page", 2, 10, 10, "t10"},
		{"last partial page", 3, 10, 5, "t20"},
		{"past the end", 4, 10, 0, ""},
		{"zero page clamps to first", 0, 10, 10, "t0"},
		{"zero size uses default", 1, 0, 10, "t0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total := q.page(tt.page, tt.pageSize)
			if total != 25 {
				t.Errorf("total = %d, want 25", total)
			}
			if len(items) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(items), tt.wantLen)
			}
			if tt.wantLen > 0 && items[0].Title != tt.wantFirst {
				t.Errorf("first = %s, want %s", items[0].Title, tt.wantFirst)
			}
		})
	}
}
