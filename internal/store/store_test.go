package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return s
}

func testEvent(id string, ts time.Time, seq uint64) *DetectionEventRecord {
	return &DetectionEventRecord{
		ID:          id,
		Timestamp:   ts,
		Seq:         seq,
		FrameWidth:  640,
		FrameHeight: 480,
		Count:       1,
		Boxes: []BoxRecord{
			{Class: "person", Probability: 0.9, XMin: 10, YMin: 20, XMax: 110, YMax: 220},
		},
	}
}

// TestSaveAndGetEvent verifies a stored event round trips through the
// database including its serialized boxes.
func TestSaveAndGetEvent(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	ev := testEvent("ev-1", now, 7)
	ev.CorrelationID = "req-7"
	ev.Boxes[0].Depth = 2.5
	if err := s.SaveEvent(ev); err != nil {
		t.Fatalf("saving event: %v", err)
	}

	got, err := s.GetEvent("ev-1")
	if err != nil {
		t.Fatalf("fetching event: %v", err)
	}
	if got.Seq != 7 || got.CorrelationID != "req-7" || got.Count != 1 {
		t.Errorf("unexpected event fields: %+v", got)
	}
	if got.FrameWidth != 640 || got.FrameHeight != 480 {
		t.Errorf("frame dims = %dx%d, want 640x480", got.FrameWidth, got.FrameHeight)
	}
	if len(got.Boxes) != 1 {
		t.Fatalf("got %d boxes, want 1", len(got.Boxes))
	}
	box := got.Boxes[0]
	if box.Class != "person" || box.XMax != 110 || box.Depth != 2.5 {
		t.Errorf("unexpected box: %+v", box)
	}
}

// TestGetEventMissing verifies an unknown id yields an error.
func TestGetEventMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetEvent("nope"); err == nil {
		t.Error("expected an error for a missing event")
	}
}

// TestListEvents verifies ordering, since filtering and the limit.
func TestListEvents(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		ev := testEvent("ev-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute), uint64(i))
		if err := s.SaveEvent(ev); err != nil {
			t.Fatalf("saving event %d: %v", i, err)
		}
	}

	all, err := s.ListEvents(nil, 0)
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d events, want 5", len(all))
	}
	if all[0].Seq != 4 || all[4].Seq != 0 {
		t.Errorf("events not newest first: seqs %d..%d", all[0].Seq, all[4].Seq)
	}

	since := base.Add(3 * time.Minute)
	recent, err := s.ListEvents(&since, 0)
	if err != nil {
		t.Fatalf("listing since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("got %d events since t+3m, want 2", len(recent))
	}

	limited, err := s.ListEvents(nil, 2)
	if err != nil {
		t.Fatalf("listing limited: %v", err)
	}
	if len(limited) != 2 || limited[0].Seq != 4 {
		t.Errorf("limit 2 returned %d events starting at seq %d", len(limited), limited[0].Seq)
	}
}

// TestDeleteOlderThan verifies pruning removes only stale rows.
func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 4; i++ {
		ev := testEvent("ev-"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), uint64(i))
		if err := s.SaveEvent(ev); err != nil {
			t.Fatalf("saving event %d: %v", i, err)
		}
	}

	deleted, err := s.DeleteOlderThan(base.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d rows, want 2", deleted)
	}

	left, err := s.ListEvents(nil, 0)
	if err != nil {
		t.Fatalf("listing after prune: %v", err)
	}
	if len(left) != 2 {
		t.Errorf("%d events remain, want 2", len(left))
	}
}
