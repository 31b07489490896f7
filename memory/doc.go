// Package memory holds the working memory of the engine.
//
//   - Task memory: ordered steps, result snapshots and an audit log per task.
//     Mutations fail with NOT_FOUND unless the memory was created first.
//   - Repo memory: long-lived project knowledge keyed by repository id. Updates
//     merge into the stored structure and never replace it wholesale.
//   - Cache: a generic key/value store with per-entry TTL, expired lazily on
//     read and eagerly by the sweep.
//   - Vector store: optional similarity index. FlatIndex scans every vector
//     (O(n) per query, fine at the scale of one project); QdrantIndex delegates
//     to a Qdrant collection.
//
// A periodic sweep evicts least-recently-updated task and repo memories past
// their ceilings, expired cache entries and vectors older than the configured
// lifetime. Only one sweep runs at a time.
package memory
