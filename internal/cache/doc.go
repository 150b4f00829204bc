// Package cache provides the recency index behind a value array's inline
// value cache.
//
// The value bytes themselves live in the array's entries; this package only
// decides which cached key is evicted next.
package cache
