// Package ingest turns local files into embedded, searchable chunks.
//
// The pipeline is: detect the file kind, extract plain text through an
// Extractor, split the text into overlapping rune-based chunks, and
// hand the chunks to the vector store for embedding and persistence.
// Documents are identified by a deterministic ID derived from the
// absolute file path, so re-ingesting a changed file replaces its
// chunks instead of duplicating them.
package ingest
