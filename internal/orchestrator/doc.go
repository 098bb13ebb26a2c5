// Package orchestrator keeps the OS-level view of accounts and services
// consistent with the record store through partial failures on either side.
//
// Operations on the same username are not serialized in-process: two
// concurrent Create calls race at the OS layer and the store's unique index
// on username is the only guard against a double registration. Concurrent
// Toggle/Delete interleavings on one username are likewise unguarded.
package orchestrator
