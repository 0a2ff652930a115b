// Package storagevalkey stores the register in Valkey. Keys are namespaced by
// an optional prefix and expiring entries use server-side TTLs.
package storagevalkey
