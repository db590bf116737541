// Package language infers the language of subtitle files and release names.
//
// The lookup tables and compiled expressions are built once at package
// initialization and are read-only afterwards, so every function here is
// safe for concurrent use.
package language
