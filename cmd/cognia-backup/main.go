// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/cognia/pkg/logging"
	"github.com/AleutianAI/cognia/services/backup/service"
	"github.com/AleutianAI/cognia/services/backup/storage"
	"github.com/AleutianAI/cognia/services/backup/storage/badgerstore"
	"github.com/AleutianAI/cognia/services/backup/storage/sqlitestore"
)

var (
	dataDir    string
	sqlitePath string
	verbose    bool

	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// defaultDataDir resolves the badger store location, honoring the
// COGNIA_DATA_DIR override.
func defaultDataDir() string {
	if dir := os.Getenv("COGNIA_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cognia"
	}
	return filepath.Join(home, ".cognia", "data")
}

// openService wires the document store, the optional relational
// mirror, and the persistence service on top of them. The returned
// cleanup must run before exit.
func openService() (*service.Service, func(), error) {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	logger = logging.New(logging.Config{Level: level, Service: "backup"})

	primary, err := badgerstore.Open(badgerstore.Config{
		Path:   dataDir,
		Logger: logger.Slog(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open document store at %s: %w", dataDir, err)
	}

	opts := []service.Option{service.WithLogger(logger)}
	var mirror storage.Backend
	if sqlitePath != "" {
		mirror, err = sqlitestore.Open(sqlitePath)
		if err != nil {
			primary.Close()
			return nil, nil, fmt.Errorf("open relational store at %s: %w", sqlitePath, err)
		}
		opts = append(opts, service.WithMirror(mirror))
	}

	svc := service.New(primary, opts...)
	cleanup := func() {
		if mirror != nil {
			mirror.Close()
		}
		primary.Close()
		logger.Close()
	}
	return svc, cleanup, nil
}
