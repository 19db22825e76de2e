// Package docrag provides a retrieval pipeline for documentation pages.
// It crawls pages as markdown, splits them into boundary-aware chunks,
// embeds each chunk, stores the vectors, and answers similarity queries
// against them.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, trafilatura/).
package docrag
