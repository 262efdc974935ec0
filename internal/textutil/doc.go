// Package textutil sanitizes remote display names into filesystem-safe file
// names and tokens.
//
// Catalog names arrive in arbitrary scripts and with arbitrary punctuation.
// SafeFileName keeps letters and digits of any script (after NFC
// normalization) plus space, dash, underscore, and dot; SanitizeToken produces
// the lowercase ASCII tokens used for staging directory names.
package textutil
