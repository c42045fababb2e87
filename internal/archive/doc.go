// Package archive reads and writes the jar-style archives the engine deals
// with: library archives, the dependency archive and the published helper
// archive.
//
// Writes always go through Writer, which builds the archive in a temporary
// file and renames it over the target, so a crash or a failed build never
// leaves a half-written archive behind.
package archive
