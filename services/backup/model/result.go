// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

// ImportResult summarizes one import call.
//
// Warnings name skipped or renamed entities. Errors holds per-table
// write failures; the import is a success only when Errors is empty.
// A partially successful import still reports which categories landed.
type ImportResult struct {
	ImportedSessions       int      `json:"importedSessions"`
	ImportedMessages       int      `json:"importedMessages"`
	ImportedProjects       int      `json:"importedProjects"`
	ImportedKnowledgeFiles int      `json:"importedKnowledgeFiles"`
	ImportedSummaries      int      `json:"importedSummaries"`
	Warnings               []string `json:"warnings"`
	Errors                 []string `json:"errors"`
}

// OK reports whether the import completed without write failures.
func (r *ImportResult) OK() bool {
	return len(r.Errors) == 0
}

// MessagesPage is one page of a filtered message listing.
type MessagesPage struct {
	Items   []Message `json:"items"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Total   int       `json:"total"`
	HasMore bool      `json:"hasMore"`
}
