// Package refresh implements the catalog refresh engine: it takes a batch of
// upstream subscription, product, and content definitions and reconciles them
// into one owner's catalog without duplicating versions that are shared
// across owners.
//
// The engine builds a dependency graph of entity nodes (products reference
// derived and provided products and content; content is a leaf), classifies
// every node bottom-up as created, updated, unchanged, children-updated, or
// skipped, and then applies the changes in a second pass so child identities
// are final before parents link to them. The whole run executes inside one
// database transaction, retried a bounded number of times when a concurrent
// refresh wins the race to create the same shared version.
package refresh
