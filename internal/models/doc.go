// Package models defines domain entities and persistence interfaces for the visionary photo library.
//
// Persistent entities:
//   - [Album] : A named grouping of classified photos, keyed by predicted label
//   - [Classification] : One classified photo with its label, confidence, optional image bytes, and owning album
//
// Both implement the [Model] interface providing ID, timestamps, and validation, and support soft deletes.
// The [Repository] interface defines standard CRUD operations for database access.
//
// Two read orders exist for an album's photos, see [ClassificationOrder]:
// the detail listing sorts by descending confidence while an album's own collection is chronological.
package models
