// Package testsupport holds fixtures shared by package tests: temp-dir
// backed configs, ledger stores, and sized files.
package testsupport
