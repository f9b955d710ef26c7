// Package models defines the catalog data model: the persisted product and
// content entities with their owner-version mappings, and the upstream info
// views received in refresh manifests.
package models
