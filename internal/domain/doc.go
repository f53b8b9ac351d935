// Package domain models flood-related content discovery for Taiwanese
// locations: normalized content items, relevance scoring, deduplication,
// heatmap synthesis, and incident reports.
//
// # Relevance scoring
//
// Every discovered item is scored against the search target on two axes:
//
// Location score (0–10): the target address is split on administrative
// division markers (市 city, 縣 county, 區 district, 鄉/鎮 township, 村/里
// village). Each fragment longer than one character contributes:
//
//	+4 in the title (fragments of 3+ characters), +3 for shorter fragments
//	+2 in the body (3+ characters), +1 for shorter fragments
//	+3 bonus when the entire target string appears verbatim
//
// Flood topic score (0–15): a weighted keyword table covering flooding,
// heavy rain, typhoons, drainage infrastructure, road closures, and
// colloquial phrasing, in both Traditional Chinese and English. Group
// weights range 1–5; a keyword that also appears in the title counts twice.
//
// Combined score: (location + topic) × source-type weight (government ×2.0,
// weather ×1.5, national ×1.2, local/default ×1.0) + priority×0.1, rounded
// to one decimal and clamped to the adapter's ceiling. Feed-based adapters
// discard items scoring ≤ 2.
//
// # Deduplication
//
// The dedup identity of an item is its URL with tracking parameters
// (utm_*, fbclid, gclid, ref) stripped and lower-cased, paired with the
// first 20 runes of the lower-cased title. Items are sorted by score before
// collapsing so the best-scored duplicate survives.
//
// # Heatmap synthesis
//
// Points are derived per response, never persisted, in priority order:
// real incidents inside the radius (weight = severity), else one jittered
// point per news item near the center (weight 1–4), else a deterministic
// ring of five "estimated" points at 72° spacing so map consumers can tell
// evidence-based points from placeholders.
//
// # Incident reports
//
// Crowd/agency flood reports arrive as flat JSON over Kafka. IDs are
// deterministic SHA-256 hashes of source|lat|lon|reported_at, making
// re-ingestion idempotent. Severity derives from reported water depth:
// >200 cm → 3, >50 cm → 2, otherwise 1.
package domain
