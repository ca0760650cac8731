package config

// StateAccessMode mirrors reducto.StateAccessMode for YAML documents.
type StateAccessMode string

const (
	// StateAccessShared (default) hands out the published state as is.
	StateAccessShared StateAccessMode = "shared"
	// StateAccessDeepCopy hands out a deep copy on every read.
	StateAccessDeepCopy StateAccessMode = "deep_copy"
)

// StatePolicy defines how the store exposes its state to readers.
type StatePolicy struct {
	AccessMode StateAccessMode `yaml:"access_mode,omitempty" json:"access_mode,omitempty"`
}

// Driver names a snapshot repository implementation.
type Driver string

const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverPostgres Driver = "postgres"
	DriverDynamoDB Driver = "dynamodb"
)
