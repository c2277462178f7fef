// Package tasks runs the photo pipeline: classify, compress, fingerprint, and persist into the album library,
// with real-time progress reporting for batches.
//
// # Core Operations
//
//  1. [Pipeline.Classify] : One photo from bytes
//     - Asks the [vision.Gateway] for a label and confidence
//     - Re-encodes the image as JPEG, computes its fingerprint, and reads its capture time
//     - Saves the result through [repositories.Library.CreateClassification], which files it in the album
//     named after the label
//
//  2. [Pipeline.ClassifyFile] : One photo from a path, subject to the configured size cap
//
//  3. [Pipeline.BulkClassify] : Many paths on a rate-limited worker pool
//     - One failing file does not stop the others
//     - Returns per-file results in input order
//
// # Progress Reporting
//
// Batch operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for richer front ends.
// Updates use select with default so a slow reader never stalls the workers.
package tasks
