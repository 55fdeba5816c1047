package core

import "time"

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes a mutation the client made to the ledger.
type Change struct {
	Kind          ChangeKind
	TransactionID int64
	UserID        int64
	At            time.Time
}
