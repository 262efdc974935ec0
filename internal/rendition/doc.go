// Package rendition picks one encoded variant of a video from an HLS master
// playlist according to a quality preference.
//
// Variants are labelled from their resolution, then from quality tokens in
// the stream URL, then from bandwidth. Selection walks a fixed fallback chain
// per preference so the same manifest and preference always yield the same
// variant. Resolver wraps the selector with the manifest fetch and degrades to
// the manifest URL itself whenever nothing usable can be selected.
package rendition
