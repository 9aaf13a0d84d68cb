//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

// DecideWebFallback reports whether the web search fallback should run
// after retrieval. It is a pure function of its inputs: the caller must
// have requested the fallback, the web tool must be available, and the
// retrieval result must be weak. Retrieval is weak when it produced no
// hits or when its best score is below minScore.
func DecideWebFallback(
	useWebFallback, toolAvailable bool,
	retrievedCount int,
	topScore, minScore float64,
) bool {
	if !useWebFallback || !toolAvailable {
		return false
	}
	if retrievedCount == 0 {
		return true
	}
	return topScore < minScore
}
