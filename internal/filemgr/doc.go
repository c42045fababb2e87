// Package filemgr models the compiler's view of the filesystem.
//
// A FileManager lists compilation units per package and location, decides
// where compiled output goes and derives binary names. Standard covers the
// standard classpath and the output directory. Overlay wraps another
// FileManager and adds what the watched library directory contributes:
// virtual compilation units for every class inside a library archive, and
// the loader that resolves those classes.
//
// The (package index, loader) pair of an Overlay is an immutable Snapshot
// swapped atomically, so readers never see a loader of one generation next
// to an index of another.
package filemgr
