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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/cognia/services/backup/envelope"
	"github.com/AleutianAI/cognia/services/backup/model"
	"github.com/AleutianAI/cognia/services/backup/remap"
	"github.com/AleutianAI/cognia/services/backup/service"
)

var (
	rootCmd = &cobra.Command{
		Use:   "cognia-backup",
		Short: "Export, import, and inspect Cognia chat backups",
		Long: `cognia-backup manages versioned backups of chat state: sessions,
messages, projects, settings, and related data. Backups can be written
as plain JSON packages or sealed in passphrase-encrypted envelopes.`,
	}

	outPath       string
	encrypt       bool
	passphraseEnv string
	onlySessions  bool
	onlySettings  bool
	onlyArtifacts bool
	onlyAux       bool

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export chat state to a backup file",
		Long: `Assembles a versioned backup package from the local stores and writes
it to --out. With --encrypt the package is sealed with a passphrase
read from the environment variable named by --passphrase-env.`,
		RunE: runExport,
	}

	strategyFlag string
	clearFirst   bool

	importCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Import a backup file into the local stores",
		Long: `Ingests a backup in any supported format: a v3 package, an encrypted
envelope, or a legacy pre-v3 export. Identifier collisions are handled
per --strategy: skip drops colliding entities, merge-rename assigns
fresh identifiers, replace requires the stores to be cleared first
(pass --clear together with --yes to do that in the same run).`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect [file]",
		Short: "Show the format and manifest of a backup file",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	confirmClear bool

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "DANGER: delete all chat state from the local stores",
		RunE:  runClear,
	}

	rebuildCmd = &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the document store from the relational mirror",
		RunE:  runRebuild,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "document store directory")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "relational mirror database path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().BoolVar(&encrypt, "encrypt", false, "seal the backup with a passphrase")
	exportCmd.Flags().StringVar(&passphraseEnv, "passphrase-env", "COGNIA_BACKUP_PASSPHRASE", "environment variable holding the passphrase")
	exportCmd.Flags().BoolVar(&onlySessions, "sessions", false, "include only sessions")
	exportCmd.Flags().BoolVar(&onlySettings, "settings", false, "include only settings and the storage snapshot")
	exportCmd.Flags().BoolVar(&onlyArtifacts, "artifacts", false, "include only artifacts")
	exportCmd.Flags().BoolVar(&onlyAux, "auxiliary", false, "include only messages, projects, and related tables")

	importCmd.Flags().StringVar(&strategyFlag, "strategy", string(remap.StrategyMergeRename), "collision strategy: skip, replace, or merge-rename")
	importCmd.Flags().StringVar(&passphraseEnv, "passphrase-env", "COGNIA_BACKUP_PASSPHRASE", "environment variable holding the passphrase")
	importCmd.Flags().BoolVar(&clearFirst, "clear", false, "clear domain data before a replace import (requires --yes)")
	importCmd.Flags().BoolVar(&confirmClear, "yes", false, "confirm deletion when using --clear")

	clearCmd.Flags().BoolVar(&confirmClear, "yes", false, "confirm deletion")

	rootCmd.AddCommand(exportCmd, importCmd, inspectCmd, clearCmd, rebuildCmd)
}

// exportSelection derives the category selection from the flags. No
// category flag means everything.
func exportSelection() service.Selection {
	sel := service.Selection{
		Sessions:  onlySessions,
		Settings:  onlySettings,
		Artifacts: onlyArtifacts,
		Auxiliary: onlyAux,
	}
	if !sel.Any() {
		return service.FullSelection()
	}
	return sel
}

// passphraseFromEnv reads the passphrase into a sealed enclave and
// scrubs the environment copy.
func passphraseFromEnv() (*memguard.Enclave, error) {
	value := os.Getenv(passphraseEnv)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s is empty or unset", passphraseEnv)
	}
	os.Unsetenv(passphraseEnv)
	return envelope.NewPassphrase(value), nil
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	var data []byte
	if encrypt {
		passphrase, err := passphraseFromEnv()
		if err != nil {
			return err
		}
		env, err := svc.ExportEncrypted(ctx, exportSelection(), passphrase)
		if err != nil {
			return err
		}
		if data, err = json.MarshalIndent(env, "", "  "); err != nil {
			return err
		}
	} else {
		pkg, err := svc.ExportPackage(ctx, exportSelection())
		if err != nil {
			return err
		}
		if data, err = json.MarshalIndent(pkg, "", "  "); err != nil {
			return err
		}
	}

	if outPath == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(outPath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%d bytes)\n", outPath, len(data))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if clearFirst && !confirmClear {
		return fmt.Errorf("refusing to clear chat state without --yes")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	opts := service.ImportOptions{Strategy: remap.Strategy(strategyFlag)}
	format, err := model.DetectFormat(raw)
	if err != nil {
		return err
	}
	if format == model.FormatEncryptedV1 {
		if opts.Passphrase, err = passphraseFromEnv(); err != nil {
			return err
		}
	}

	if clearFirst {
		if err := svc.ClearDomainData(ctx); err != nil {
			return err
		}
	}

	result, err := svc.Import(ctx, raw, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d sessions, %d messages, %d projects, %d knowledge files, %d summaries\n",
		result.ImportedSessions, result.ImportedMessages, result.ImportedProjects,
		result.ImportedKnowledgeFiles, result.ImportedSummaries)
	for _, w := range result.Warnings {
		fmt.Fprintln(out, "warning:", w)
	}
	for _, e := range result.Errors {
		fmt.Fprintln(out, "error:", e)
	}
	if !result.OK() {
		return fmt.Errorf("import finished with %d write failures", len(result.Errors))
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	format, err := model.DetectFormat(raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Format:", format)

	switch format {
	case model.FormatPackageV3:
		var pkg model.BackupPackage
		if err := json.Unmarshal(raw, &pkg); err != nil {
			return fmt.Errorf("decode package: %w", err)
		}
		printManifest(out, pkg.Manifest)
		fmt.Fprintf(out, "Sessions: %d  Messages: %d  Projects: %d\n",
			len(pkg.Payload.Sessions), len(pkg.Payload.Messages), len(pkg.Payload.Projects))
	case model.FormatEncryptedV1:
		var env model.EncryptedEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		printManifest(out, env.Manifest)
		fmt.Fprintf(out, "KDF: %s/%s, %d iterations\n", env.KDF.Algorithm, env.KDF.Hash, env.KDF.Iterations)
	case model.FormatLegacy:
		fmt.Fprintln(out, "Legacy pre-v3 export; import will normalize it to the current schema.")
	}
	return nil
}

func printManifest(out io.Writer, m model.Manifest) {
	fmt.Fprintf(out, "Version: %s (schema %d)\n", m.Version, m.SchemaVersion)
	fmt.Fprintln(out, "Exported:", m.ExportedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(out, "Backend:", m.Backend)
	fmt.Fprintln(out, "Trace ID:", m.TraceID)
	if m.Integrity != nil {
		fmt.Fprintf(out, "Checksum: %s (%s)\n", m.Integrity.Checksum, m.Integrity.Algorithm)
	}
}

func runClear(cmd *cobra.Command, args []string) error {
	if !confirmClear {
		return fmt.Errorf("refusing to delete chat state without --yes")
	}
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := svc.ClearDomainData(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "All chat state deleted.")
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if sqlitePath == "" {
		return fmt.Errorf("rebuild requires --sqlite pointing at the relational mirror")
	}
	svc, cleanup, err := openService()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := svc.Rebuild(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Rebuild complete.")
	return nil
}
