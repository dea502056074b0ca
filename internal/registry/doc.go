// Package registry is the durable store of users and their hosted images.
//
// It is the source of truth for per-user counters and activity timestamps,
// and for the aggregates reported by /stats.
package registry
