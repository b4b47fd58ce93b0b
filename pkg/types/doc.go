// Package types defines the record-type metadata, optional override
// interfaces, store configuration and standard errors shared by the
// crudforms packages.
package types
