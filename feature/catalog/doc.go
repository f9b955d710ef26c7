// Package catalog exposes the catalog refresh engine as an application
// feature: manifest loading from files or object storage, the owner-facing
// service operations, and the HTTP handlers.
//
// The reconciliation semantics live in the refresh subpackage; this package
// wires them to storage, persistence, and transport.
package catalog
