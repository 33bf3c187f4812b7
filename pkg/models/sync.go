package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the terminal status of a sync run
type SyncStatus string

const (
	SyncStatusNoDefinitions SyncStatus = "no_definitions"
	SyncStatusSuccess       SyncStatus = "success"
	// SyncStatusRunning and SyncStatusFailed only appear in the audit trail
	SyncStatusRunning SyncStatus = "running"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncResult is returned to the caller of a sync run.
type SyncResult struct {
	Status SyncStatus `json:"status"`
	Count  int        `json:"count"`
}

// SyncRun is the audit record of one sync run.
type SyncRun struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Shop       string     `db:"shop" json:"shop"`
	OwnerType  string     `db:"owner_type" json:"owner_type"`
	Status     SyncStatus `db:"status" json:"status"`
	Count      int        `db:"count" json:"count"`
	ChunkSizes []int      `db:"-" json:"chunk_sizes"`
	Error      *string    `db:"error" json:"error,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// TableName returns the database table name
func (SyncRun) TableName() string {
	return "sync_runs"
}
