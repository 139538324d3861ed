// Package nlu holds the compiled-in language layer of voxcmd: utterance
// normalisation and tokenisation, typed entity extraction, verb synonym
// expansion and edit-distance similarity.
//
// Everything in this package is pure and deterministic. The vocabulary tables
// are ordered slices rather than maps because iteration order decides which
// canonical value wins when an utterance matches more than one entry.
//
// All exported functions are safe for concurrent use.
package nlu
