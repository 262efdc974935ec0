// Package catalog talks to the remote course catalog and walks its folder
// tree.
//
// Client wraps the catalog HTTP API: folder listings (with pagination) and
// signed stream URLs for videos. Listings are decoded into strictly
// validated Node values; a shape mismatch fails the whole listing with a
// fetch error instead of guessing at fields.
//
// Walker turns a root folder into a lazy depth-first sequence of Leaf values
// using an explicit frame stack. A folder that cannot be fetched is logged
// and skipped while its siblings are still walked.
package catalog
