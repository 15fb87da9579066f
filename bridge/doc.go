// Package bridge marshals values between flat JSON payloads and a live
// host object graph.
//
// This package contains:
//   - Tagged wire nodes (plain, date, array, dict, reference)
//   - The handle pool mapping objects to stable integer IDs
//   - Classification of host values onto wire shapes
//   - The encoder and decoder walking value trees
//   - The operation wrapper and dispatcher serving named operations
package bridge
