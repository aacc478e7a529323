// Package metadata provides SQLite-backed key/value tables of the local
// client database.
//
// Two tables share the same shape: TableDurable stands in for the browser's
// IndexedDB (session snapshot plus evictable entries) and TableLocal stands
// in for localStorage (cart identifiers). Values are opaque bytes tagged with
// the Encoding they were written with.
//
// Typical usage
//
//	repo := metadata.NewSQLiteRepository(db, metadata.TableDurable)
//	_ = repo.SetEncoded(ctx, "auth-store", snapshot, metadata.EncodingJSON)
//	v, _ := repo.Get(ctx, "auth-store") // nil, nil when absent
package metadata
