// Package errors provides the classified error foundation used across the
// tide pool service: a category/severity/retry taxonomy, a fluent builder,
// and an HTTP adapter that maps categories onto the public wire contract
// (429 already_clicked, 423 locked, 503 store failures).
package errors
