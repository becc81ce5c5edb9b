package store

import (
	"errors"
	"time"

	"assetguard/internal/extract"
)

const StateVersion = 1

// State is the on-disk document holding every optimization record.
type State struct {
	Version int      `toml:"version"`
	Records []Record `toml:"records"`
}

// Record is the operator's decision for one (handle, kind) pair. ID is
// assigned on first insertion and never changes.
type Record struct {
	ID           string       `toml:"id" json:"id"`
	Kind         extract.Kind `toml:"type" json:"type"`
	Handle       string       `toml:"handle" json:"handle"`
	OwningPlugin string       `toml:"owning_plugin" json:"owningPlugin"`
	IsActive     bool         `toml:"is_active" json:"isActive"`
	Rule         string       `toml:"rule,omitempty" json:"rule,omitempty"`
	CreatedAt    time.Time    `toml:"created_at" json:"createdAt"`
}

// Seed describes a record to insert if absent.
type Seed struct {
	Kind         extract.Kind
	Handle       string
	OwningPlugin string
	Rule         string
}

type recordKey struct {
	handle string
	kind   extract.Kind
}

func keyOf(r Record) recordKey { return recordKey{handle: r.Handle, kind: r.Kind} }

var errEmptyHandle = errors.New("OPT_UPSERT: resource handle is required")
