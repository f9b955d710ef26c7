// Package store provides the persistence accessors used by the catalog
// refresh engine. Every method takes the *gorm.DB to operate on, so a caller
// holding a transaction handle keeps all accesses inside that transaction.
package store
