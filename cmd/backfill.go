/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/humaidq/glycowatch/db"
)

var CmdBackfill = &cli.Command{
	Name:   "backfill",
	Usage:  "Rewrite stored predictions in the current format and rebuild owner indexes",
	Flags:  storeFlags(),
	Action: backfill,
}

// backfillResult counts what one backfill run did.
type backfillResult struct {
	Scanned   int
	Rewritten int
	Failed    int
}

func backfill(ctx context.Context, cmd *cli.Command) error {
	if err := applyLogLevel(cmd); err != nil {
		return err
	}

	if err := applyDisplayZone(cmd); err != nil {
		return err
	}

	if err := db.Init(ctx, storeConfig(cmd)); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	res, err := runBackfill(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned %d predictions, rewrote %d, failed %d\n", res.Scanned, res.Rewritten, res.Failed)

	return nil
}

// runBackfill canonicalizes every stored prediction. A record that cannot
// be rewritten is logged and counted; the run continues.
func runBackfill(ctx context.Context) (backfillResult, error) {
	var res backfillResult

	ids, err := db.ListPredictionIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list predictions: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Scanned++

		changed, err := db.CanonicalizePrediction(ctx, id)
		if err != nil {
			res.Failed++

			appLogger.Warn("Failed to backfill prediction", "prediction_id", id, "error", err)

			continue
		}

		if changed {
			res.Rewritten++
		}
	}

	appLogger.Info("Backfill finished",
		"scanned", res.Scanned,
		"rewritten", res.Rewritten,
		"failed", res.Failed,
	)

	return res, nil
}
