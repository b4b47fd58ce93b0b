package types

import "errors"

// Record type errors, returned when a struct cannot be described or a value
// does not fit it.
var (
	ErrNotStruct         = errors.New("record type must be a struct")
	ErrNoIdentity        = errors.New("record type has no integer identity field")
	ErrNoFields          = errors.New("record type declares no persisted fields")
	ErrInvalidTag        = errors.New("invalid db tag")
	ErrUnsupportedType   = errors.New("unsupported field type")
	ErrTypeNotRegistered = errors.New("record type not registered")
	ErrDuplicateTable    = errors.New("table registered twice by different types")
	ErrUnknownField      = errors.New("unknown field")
	ErrTypeMismatch      = errors.New("value does not match field kind")
	ErrWrongRecordType   = errors.New("record belongs to another type")
)

// Connection handle lifecycle errors.
var (
	ErrNotInitialized     = errors.New("crudforms is not initialized; call Initialize first")
	ErrAlreadyInitialized = errors.New("crudforms is already initialized")
)

// Store errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrNotFound        = errors.New("record not found")
	ErrNotPersisted    = errors.New("record has no identity")

	// ErrIntegrity wraps constraint violations reported by the database
	// (uniqueness, foreign key, not null).
	ErrIntegrity = errors.New("integrity violation")
)
