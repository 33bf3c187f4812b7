package models

import "time"

// DefaultOwnerType is the owner type synced when none is configured
const DefaultOwnerType = "PRODUCT"

// SchemaDefinition is the local mirror of one remote metafield definition.
// (Shop, OwnerType, Key) is unique and is the upsert conflict target.
type SchemaDefinition struct {
	ID          int64      `db:"id" json:"id"`
	Shop        string     `db:"shop" json:"shop"`
	OwnerType   string     `db:"owner_type" json:"owner_type"`
	Key         string     `db:"key" json:"key"`
	Name        string     `db:"name" json:"name"`
	Type        *string    `db:"type" json:"type"`
	Description *string    `db:"description" json:"description"`
	LastAudited *time.Time `db:"last_audited" json:"last_audited,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (SchemaDefinition) TableName() string {
	return "schema_definitions"
}

// UpsertCommand is one normalized definition waiting to be applied.
type UpsertCommand struct {
	Shop        string  `json:"shop"`
	OwnerType   string  `json:"owner_type"`
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

// RemoteTypeRef is the nested type object of a remote definition.
type RemoteTypeRef struct {
	Name string `json:"name"`
}

// RawRemoteDefinition is a metafield definition as returned by the remote
// API. It only lives for one sync run.
type RawRemoteDefinition struct {
	ID          string         `json:"id"`
	Namespace   string         `json:"namespace"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Type        *RemoteTypeRef `json:"type"`
	// ValidationStatus is read but not persisted.
	ValidationStatus string `json:"validationStatus"`
}
