// Package lock provides run locks for the incremental controller: an
// in-process one for single-instance deployments and tests, and a Redis one
// that serializes runs across instances sharing a derived store.
package lock
