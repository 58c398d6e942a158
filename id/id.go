// Package id defines TypeID-based identifiers for workers and workflow runs.
//
// IDs are K-sortable (UUIDv7-based), globally unique and URL-safe in the
// format "prefix_suffix". A worker ID is generated once per execution slot
// and is the value stored in the leader lease and in running-queue keys,
// so it must never contain the "|" key separator; TypeIDs never do.
package id

import (
	"fmt"

	"go.jetify.com/typeid"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixWorker Prefix = "wkr"
	PrefixRun    Prefix = "wfrun"
)

// ID wraps a TypeID.
type ID struct {
	inner typeid.AnyID
}

// New generates a new ID with the given prefix. It panics if prefix is not
// a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.WithPrefix(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid}
}

// WorkerID identifies one execution slot (prefix: "wkr").
type WorkerID = ID

// RunID identifies one run of a workflow (prefix: "wfrun").
type RunID = ID

// NewWorkerID generates a new worker ID.
func NewWorkerID() WorkerID { return New(PrefixWorker) }

// NewRunID generates a new workflow run ID.
func NewRunID() RunID { return New(PrefixRun) }

// String returns the full TypeID string.
func (i ID) String() string { return i.inner.String() }
