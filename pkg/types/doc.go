// Package types defines the record, registry, and store contracts, the
// submission and descriptor value types, and the standard errors shared by
// the multirow packages.
//
// The multirow core never talks to a database directly. It resolves record
// types through a Registry, mutates records through the Record interface,
// and persists them through a Tx obtained from a Store.
package types
