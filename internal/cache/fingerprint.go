//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cache

import (
	"encoding/json"
	"fmt"
)

// SearchKey builds a deterministic fingerprint for a retrieval-only lookup.
// Filters are canonicalized as compact JSON; encoding/json emits map keys in
// sorted order, so equal filter sets always produce equal keys.
func SearchKey(namespace, query string, topK int, filters map[string]any) string {
	filtersJSON := ""
	if filters != nil {
		if data, err := json.Marshal(filters); err == nil {
			filtersJSON = string(data)
		}
	}
	return fmt.Sprintf("%s\x00%s\x00%d\x00%s", namespace, query, topK, filtersJSON)
}

// ChatKey builds a deterministic fingerprint for a full chat answer.
// Conversation history is intentionally excluded; callers must not cache
// requests that carry history.
func ChatKey(namespace, query string, topK int, minScore float64, useWebFallback bool) string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%g\x00%t",
		namespace, query, topK, minScore, useWebFallback)
}
