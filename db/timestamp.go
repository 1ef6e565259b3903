/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// VisitLabelLayout formats visit instants for charts, tables and prompts.
const VisitLabelLayout = "Jan 02, 2006 03:04 PM"

// UnknownVisitLabel labels visits whose time cannot be resolved.
const UnknownVisitLabel = "Unknown date"

var displayLocation atomic.Pointer[time.Location]

// SetDisplayLocation sets the zone visit labels are rendered in. Stored
// timestamps without an offset are also read as wall-clock time in this
// zone. nil restores UTC.
func SetDisplayLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}

	displayLocation.Store(loc)
}

// DisplayLocation returns the zone set by SetDisplayLocation, or UTC.
func DisplayLocation() *time.Location {
	if loc := displayLocation.Load(); loc != nil {
		return loc
	}

	return time.UTC
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ResolveTimestamp returns the instant a record was created. It tries an
// ISO-8601 "timestamp" (or string "created_at"), then a numeric epoch in
// "created_at" or "timestamp", then separate "date" and "time" fields.
// ok is false when none resolve; callers must not substitute the current
// time.
func ResolveTimestamp(rec Record) (time.Time, bool) {
	if rec == nil {
		return time.Time{}, false
	}

	for _, key := range []string{"timestamp", "created_at"} {
		if s, ok := rec[key].(string); ok {
			if t, ok := parseISO(s); ok {
				return t, true
			}
		}
	}

	for _, key := range []string{"created_at", "timestamp"} {
		if _, isString := rec[key].(string); isString {
			continue
		}

		if epoch, ok := toFloat(rec[key]); ok && epoch > 0 {
			return fromEpoch(epoch), true
		}
	}

	date := stringField(rec, "date")
	if date == "" {
		return time.Time{}, false
	}

	loc := DisplayLocation()

	if clock := stringField(rec, "time"); clock != "" {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, loc); err == nil {
			return t.UTC(), true
		}

		if t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc); err == nil {
			return t.UTC(), true
		}
	}

	if t, err := time.ParseInLocation("2006-01-02", date, loc); err == nil {
		return t.UTC(), true
	}

	return time.Time{}, false
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	loc := DisplayLocation()

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// fromEpoch reads Unix seconds. Values above 1e12 are milliseconds.
func fromEpoch(epoch float64) time.Time {
	if epoch > 1e12 {
		return time.UnixMilli(int64(epoch)).UTC()
	}

	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)

	return time.Unix(sec, nsec).UTC()
}

// FormatVisitLabel renders t in the display zone, or UnknownVisitLabel
// for nil.
func FormatVisitLabel(t *time.Time) string {
	if t == nil || t.IsZero() {
		return UnknownVisitLabel
	}

	return t.In(DisplayLocation()).Format(VisitLabelLayout)
}

// SortChronologically orders predictions oldest first. Predictions with no
// resolvable time keep their relative order and go last.
func SortChronologically(preds []*Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		a, b := preds[i].Timestamp, preds[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
