// Package preview serves a built gallery archive from memory with gin, so
// the pages can be checked in a browser before they are published.
package preview
