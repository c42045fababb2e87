// Package baseline builds the dependency archive: the class files of the
// packages exported by a fixed allow-list of trusted host modules, copied
// into one archive that user code compiles against.
//
// The dependency archive is built once per activation. Its classes are
// resolvable through the host's own loaders, so the classpath overlay never
// loads classes from it; it only feeds the compiler.
package baseline
