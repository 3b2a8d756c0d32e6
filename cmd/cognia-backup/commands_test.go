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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cognia/services/backup/service"
)

// TestImportClearRequiresConfirmation verifies --clear refuses to run
// without --yes, before any store is touched.
func TestImportClearRequiresConfirmation(t *testing.T) {
	clearFirst = true
	confirmClear = false
	t.Cleanup(func() { clearFirst = false })

	err := runImport(importCmd, []string{"does-not-exist.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

// TestClearRequiresConfirmation verifies the standalone clear command
// demands --yes.
func TestClearRequiresConfirmation(t *testing.T) {
	confirmClear = false

	err := runClear(clearCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

// TestExportSelectionDefaultsToFull verifies no category flag selects
// every category.
func TestExportSelectionDefaultsToFull(t *testing.T) {
	onlySessions, onlySettings, onlyArtifacts, onlyAux = false, false, false, false

	assert.Equal(t, service.FullSelection(), exportSelection())

	onlySessions = true
	t.Cleanup(func() { onlySessions = false })
	assert.Equal(t, service.Selection{Sessions: true}, exportSelection())
}
