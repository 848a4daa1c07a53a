// Package types defines the core data types used throughout the engine.
//
// Key types:
//   - Sample: A single timestamped measurement with a category tag
//   - Bucket: Aggregated statistics for a time bucket
//   - Period: Aggregation period (1min, 5min, 1hour)
package types
