// Package repositories implements SQLite persistence for the photo library.
//
// Each repository handles CRUD operations with atomic sequence generation for insertion ordering.
// Deletes are soft via deleted_at timestamps and deleted records are excluded from every read.
//
// Key Implementations:
//   - [AlbumRepository] : Album persistence with exact-name lookups
//   - [ClassificationRepository] : Classified photo persistence with ordered album listings
//   - [Library] : The opened store handle that serialises writers and runs each mutation in one transaction
//
// Sequence numbers provide stable insertion ordering independent of UUIDs and timestamps and break ties in
// every ordered listing. The [NextSequence] function increments per-table counters in dedicated sequence tables.
package repositories
