// Package export writes the two public catalog artifacts, parts.json and
// compatibility.json.
//
// Both files are written to a temp file in the target directory and renamed
// into place, so a reader never sees a partial document. Output is sorted
// (parts by SKU, vehicles by make, year, model and qualifiers) so two
// exports of the same catalog are byte-identical apart from export_date.
//
// Incremental mode encodes records in batches and streams them to disk
// instead of building the whole document in memory. It produces exactly
// the same bytes as the default mode.
package export
