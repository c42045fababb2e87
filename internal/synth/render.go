package synth

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/roach88/ruleforge/internal/ir"
)

// Constant is one `public static final String` field of a constant holder.
type Constant struct {
	Name  string
	Value string
}

// RenderConstants renders a class holding one string constant per entry,
// in the order given.
func RenderConstants(pkg, class string, consts []Constant) string {
	var b strings.Builder
	writePackage(&b, pkg)
	fmt.Fprintf(&b, "public class %s {\n", class)
	for _, c := range consts {
		fmt.Fprintf(&b, "    public static final String %s = %s;\n", c.Name, quote(c.Value))
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderInterface renders the interface generated for a proxy action class.
// The interface extends base (a fully-qualified name) and declares one
// abstract method per entry of methods, in the order given. Every
// referenced non-primitive type is imported once; imports are sorted.
func RenderInterface(pkg, simple, base string, methods []ir.ActionMethod) string {
	imports := map[string]bool{sourceName(base): true}
	for _, m := range methods {
		for _, p := range m.Params {
			if name := p.ImportName(); name != "" {
				imports[sourceName(name)] = true
			}
		}
		if name := m.Returns.ImportName(); name != "" {
			imports[sourceName(name)] = true
		}
	}
	sorted := make([]string, 0, len(imports))
	for name := range imports {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var b strings.Builder
	writePackage(&b, pkg)
	for _, name := range sorted {
		fmt.Fprintf(&b, "import %s;\n", name)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "public interface %s extends %s {\n", simple, simpleName(sourceName(base)))
	for _, m := range methods {
		params := make([]string, len(m.Params))
		for i, p := range m.Params {
			params[i] = fmt.Sprintf("%s p%d", sourceName(p.Render()), i)
		}
		fmt.Fprintf(&b, "    %s %s(%s);\n", sourceName(m.Returns.Render()), m.Name, strings.Join(params, ", "))
	}
	b.WriteString("}\n")
	return b.String()
}

// ScopeConstant returns the constant name for a scope: the scope upper-cased,
// with every rune that cannot appear in an identifier replaced by '_'.
func ScopeConstant(scope string) string {
	return identifier(strings.ToUpper(scope))
}

// DeviceConstant returns the constant name for a device UID: ':' and '-'
// become '_', as does any other rune that cannot appear in an identifier.
func DeviceConstant(uid string) string {
	return identifier(strings.NewReplacer(":", "_", "-", "_").Replace(uid))
}

// DataPointConstant returns the constant name for a data point. Data point
// names are identifiers already; anything else is replaced by '_'.
func DataPointConstant(name string) string {
	return identifier(name)
}

func identifier(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func writePackage(b *strings.Builder, pkg string) {
	if pkg != "" {
		fmt.Fprintf(b, "package %s;\n\n", pkg)
	}
}

// sourceName turns a binary name of a nested class ("a.Outer$Inner") into
// its source form ("a.Outer.Inner").
func sourceName(name string) string {
	return strings.ReplaceAll(name, "$", ".")
}

func simpleName(fqcn string) string {
	if i := strings.LastIndexByte(fqcn, '.'); i >= 0 {
		return fqcn[i+1:]
	}
	return fqcn
}

// quote renders s as a string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
