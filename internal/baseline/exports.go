package baseline

import (
	"sort"
	"strings"
)

// ExportHeader is the manifest attribute listing a module's exported packages.
const ExportHeader = "Export-Package"

// NameHeader is the manifest attribute naming a module.
const NameHeader = "Bundle-SymbolicName"

// DefaultModules are always part of the allow-list.
var DefaultModules = []string{
	"javax.measure.unit-api",
	"org.openhab.core",
	"org.openhab.core.model.script",
	"org.openhab.core.thing",
	"org.openhab.core.persistence",
	"org.openhab.core.automation",
	"org.smarthomej.automation.javarule",
	"org.ops4j.pax.logging.pax-logging-api",
}

// AllowList returns the set of module names made of defaults plus the comma
// separated names in additional. Blank names are ignored.
func AllowList(defaults []string, additional string) map[string]bool {
	allowed := make(map[string]bool, len(defaults))
	for _, name := range defaults {
		allowed[name] = true
	}
	for _, name := range strings.Split(additional, ",") {
		if name = strings.TrimSpace(name); name != "" {
			allowed[name] = true
		}
	}
	return allowed
}

// SortedNames returns the names of an allow-list in sorted order.
func SortedNames(allowed map[string]bool) []string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseExports turns an Export-Package header into path-style package names
// ("org/openhab/core/items").
//
// Clauses are separated by commas outside double quotes; attributes and
// directives after the first ';' are dropped. Duplicates are kept in their
// first position only.
func ParseExports(header string) []string {
	var (
		pkgs []string
		seen = make(map[string]bool)
	)
	for _, clause := range splitClauses(header) {
		name, _, _ := strings.Cut(clause, ";")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		path := strings.ReplaceAll(name, ".", "/")
		if seen[path] {
			continue
		}
		seen[path] = true
		pkgs = append(pkgs, path)
	}
	return pkgs
}

func splitClauses(header string) []string {
	var (
		clauses []string
		start   int
		quoted  bool
	)
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				clauses = append(clauses, header[start:i])
				start = i + 1
			}
		}
	}
	return append(clauses, header[start:])
}

// SymbolicName strips directives such as ";singleton:=true" from a
// Bundle-SymbolicName header.
func SymbolicName(header string) string {
	name, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(name)
}
