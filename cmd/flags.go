/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"fmt"
	"time"
	_ "time/tzdata" // zoneinfo for --display-tz

	"github.com/urfave/cli/v3"

	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/logging"
)

// storeFlags select the document store backend. They are shared by every
// command that touches stored data.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Value:   db.BackendFile,
			Sources: cli.EnvVars("STORE_BACKEND"),
			Usage:   "document store backend (file, rest or postgres)",
		},
		&cli.StringFlag{
			Name:    "store-path",
			Value:   "data/store.json",
			Sources: cli.EnvVars("STORE_PATH"),
			Usage:   "JSON file used by the file backend",
		},
		&cli.StringFlag{
			Name:    "store-url",
			Sources: cli.EnvVars("FIREBASE_DATABASE_URL", "STORE_URL"),
			Usage:   "base URL of the REST backend",
		},
		&cli.StringFlag{
			Name:    "store-auth",
			Sources: cli.EnvVars("FIREBASE_AUTH_TOKEN", "STORE_AUTH"),
			Usage:   "auth token for the REST backend",
		},
		&cli.DurationFlag{
			Name:    "store-cache-ttl",
			Value:   5 * time.Second,
			Sources: cli.EnvVars("STORE_CACHE_TTL"),
			Usage:   "read cache lifetime for the REST backend (0 disables caching)",
		},
		&cli.StringFlag{
			Name:    "database-url",
			Sources: cli.EnvVars("DATABASE_URL"),
			Usage:   "PostgreSQL connection string for the postgres backend",
		},
		&cli.StringFlag{
			Name:    "display-tz",
			Value:   "UTC",
			Sources: cli.EnvVars("DISPLAY_TZ"),
			Usage:   "IANA time zone for visit labels and for timestamps stored without an offset",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Usage:   "minimum log level (debug, info, warn, error)",
		},
	}
}

func storeConfig(cmd *cli.Command) db.Config {
	return db.Config{
		Backend:     cmd.String("store"),
		FilePath:    cmd.String("store-path"),
		URL:         cmd.String("store-url"),
		AuthToken:   cmd.String("store-auth"),
		DatabaseURL: cmd.String("database-url"),
		CacheTTL:    cmd.Duration("store-cache-ttl"),
	}
}

func applyLogLevel(cmd *cli.Command) error {
	level := cmd.String("log-level")
	if !logging.SetLevel(level) {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, level)
	}

	return nil
}

func applyDisplayZone(cmd *cli.Command) error {
	name := cmd.String("display-tz")

	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("%w: %q", errInvalidDisplayZone, name)
	}

	db.SetDisplayLocation(loc)

	return nil
}
