// Package store holds the latest snapshot per sensor in memory. Entries
// that are not refreshed within the TTL are hidden from List and removed
// by the background eviction loop.
package store
