// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"testing"
	"time"
)

func TestResolveTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  Record
		want string
		ok   bool
	}{
		{name: "iso with Z", rec: Record{"timestamp": "2025-01-05T10:30:00Z"}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "iso with offset", rec: Record{"timestamp": "2025-01-05T14:30:00+04:00"}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "iso with microseconds", rec: Record{"timestamp": "2025-01-05T10:30:00.123456"}, want: "2025-01-05T10:30:00.123456Z", ok: true},
		{name: "space separated", rec: Record{"timestamp": "2025-01-05 10:30:00+00:00"}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "iso beats epoch", rec: Record{"timestamp": "2025-01-05T10:30:00Z", "created_at": 1.0}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "epoch seconds", rec: Record{"created_at": 1736073000.0}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "epoch milliseconds", rec: Record{"created_at": 1736073000000.0}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "unparseable iso falls to epoch", rec: Record{"timestamp": "yesterday", "created_at": 1736073000.0}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "date and time", rec: Record{"date": "2025-01-05", "time": "10:30:00"}, want: "2025-01-05T10:30:00Z", ok: true},
		{name: "date only", rec: Record{"date": "2025-01-05"}, want: "2025-01-05T00:00:00Z", ok: true},
		{name: "bad time keeps date", rec: Record{"date": "2025-01-05", "time": "noon"}, want: "2025-01-05T00:00:00Z", ok: true},
		{name: "nothing", rec: Record{"Glucose": 100.0}, ok: false},
		{name: "garbage", rec: Record{"timestamp": "soon", "date": "someday"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ResolveTimestamp(tt.rec)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v (%v)", tt.ok, ok, got)
			}

			if !ok {
				if !got.IsZero() {
					t.Fatalf("expected zero time for unresolved record, got %v", got)
				}
				return
			}

			want, err := time.Parse(time.RFC3339Nano, tt.want)
			if err != nil {
				t.Fatalf("bad test time: %v", err)
			}

			if !got.Equal(want) {
				t.Fatalf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestFormatVisitLabel(t *testing.T) {
	t.Parallel()

	tm := mustTime(t, "2025-01-05T15:14:00Z")
	if got := FormatVisitLabel(&tm); got != "Jan 05, 2025 03:14 PM" {
		t.Fatalf("unexpected label %q", got)
	}

	if got := FormatVisitLabel(nil); got != UnknownVisitLabel {
		t.Fatalf("expected unknown label, got %q", got)
	}
}

func TestSortChronologicallyUnknownLast(t *testing.T) {
	t.Parallel()

	t1 := mustTime(t, "2025-01-01T00:00:00Z")
	t2 := mustTime(t, "2025-02-01T00:00:00Z")
	t3 := mustTime(t, "2025-03-01T00:00:00Z")

	preds := []*Prediction{
		{ID: "undated-a"},
		{ID: "march", Timestamp: &t3},
		{ID: "undated-b"},
		{ID: "january", Timestamp: &t1},
		{ID: "february", Timestamp: &t2},
	}

	SortChronologically(preds)

	want := []string{"january", "february", "march", "undated-a", "undated-b"}
	for i, id := range want {
		if preds[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, preds[i].ID)
		}
	}
}

//nolint:paralleltest // swaps the package-level display zone
func TestDisplayLocationKeepsLegacyWallClock(t *testing.T) {
	SetDisplayLocation(time.FixedZone("IST", 5*3600+30*60))
	t.Cleanup(func() { SetDisplayLocation(nil) })

	withOffset, ok := ResolveTimestamp(Record{"timestamp": "2025-01-05T20:44:00.123456+05:30"})
	if !ok {
		t.Fatal("expected offset timestamp to resolve")
	}

	if got := FormatVisitLabel(&withOffset); got != "Jan 05, 2025 08:44 PM" {
		t.Fatalf("expected IST wall clock label, got %q", got)
	}

	want := mustTime(t, "2025-01-05T15:14:00Z")

	naive, ok := ResolveTimestamp(Record{"timestamp": "2025-01-05T20:44:00"})
	if !ok || !naive.Equal(want) {
		t.Fatalf("expected naive timestamp read as IST, got %v ok=%v", naive, ok)
	}

	split, ok := ResolveTimestamp(Record{"date": "2025-01-05", "time": "20:44:00"})
	if !ok || !split.Equal(want) {
		t.Fatalf("expected date and time read as IST, got %v ok=%v", split, ok)
	}

	SetDisplayLocation(nil)

	if got := FormatVisitLabel(&withOffset); got != "Jan 05, 2025 03:14 PM" {
		t.Fatalf("expected UTC label after reset, got %q", got)
	}
}
