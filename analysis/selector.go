/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package analysis

import (
	"context"
	"strings"

	"github.com/humaidq/glycowatch/db"
)

// Caller is the signed-in user a request acts for.
type Caller struct {
	ID      string
	IsAdmin bool
}

// CanAccess reports whether the caller may read predictions owned by owner.
func (c Caller) CanAccess(owner string) bool {
	return c.IsAdmin || (c.ID != "" && c.ID == owner)
}

// SelectHistory loads every ID as one batch and only then checks access,
// so all failures are reported together. Non-admins may only select their
// own predictions. An admin passing owner restricts the batch to that
// user; without it, admins may select any prediction. Records are returned
// in request order with duplicates removed.
func SelectHistory(ctx context.Context, ids []string, caller Caller, owner string) ([]*db.Prediction, error) {
	found, missing, err := db.GetPredictions(ctx, ids)
	if err != nil {
		return nil, err
	}

	enforce := !caller.IsAdmin || owner != ""

	expected := owner
	if !caller.IsAdmin {
		expected = caller.ID
	}

	var (
		foreign []string
		records = make([]*db.Prediction, 0, len(found))
		seen    = make(map[string]bool, len(ids))
	)

	for _, id := range ids {
		p, ok := found[id]
		if !ok || seen[id] {
			continue
		}

		seen[id] = true

		if enforce && (expected == "" || p.UserID != expected) {
			foreign = append(foreign, id)
			continue
		}

		records = append(records, p)
	}

	if len(foreign) > 0 || len(missing) > 0 {
		selErr := &SelectionError{Missing: missing, Foreign: foreign}

		if len(foreign) > 0 {
			logger.Warn("Prediction selection denied",
				"user_id", caller.ID,
				"owner", expected,
				"foreign", strings.Join(foreign, ","),
				"missing", strings.Join(missing, ","),
			)
		}

		return nil, selErr
	}

	return records, nil
}
