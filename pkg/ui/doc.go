// Package ui holds the console output of tildegallery: colored status lines,
// a capture progress bar and optional desktop notifications. Output honours
// quiet mode, where only errors are printed.
package ui
