// Package catalog holds the record model of the remote catalog and the
// boundary normalization that turns its loosely shaped JSON into it.
//
// The remote list endpoint is not consistent about shapes. A page body may be
// a bare array or an object wrapping the array under one of several field
// names, and each record may express its categories as bare strings,
// {"type":{"name":...}} wrappers or {"name":...} objects. Everything is mapped
// into one canonical in-memory form here so that the rest of the pipeline
// never branches on wire shapes.
//
// Normalization is total: a reference of no known shape becomes the Unknown
// placeholder and absent fields become empty values. Only a page body that
// matches none of the known envelopes is reported, as a *ShapeError, and
// callers treat that as an empty page.
//
// # Merging
//
//	merged, inserted := catalog.Merge(master, page.Records)
//	if inserted == 0 {
//		// fully duplicate page
//	}
//
// Merge keeps the master collection unique by identity key (Record.Key).
package catalog
