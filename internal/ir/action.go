package ir

import "strings"

// primitives are the type names that never need an import.
var primitives = map[string]bool{
	"boolean": true,
	"byte":    true,
	"char":    true,
	"short":   true,
	"int":     true,
	"long":    true,
	"float":   true,
	"double":  true,
	"void":    true,
}

// TypeRef describes a parameter or return type of a reflected method.
//
// Name is the fully-qualified type name and may carry type arguments
// ("java.util.List<java.lang.String>"). Array marks an array (or generic
// array) of Name; it is always rendered with an explicit "[]" suffix.
type TypeRef struct {
	Name  string `json:"name"`
	Array bool   `json:"array,omitempty"`
}

// ParseTypeRef parses a textual type descriptor such as "boolean",
// "java.lang.String[]" or "java.util.List<java.lang.String>[]".
// Only one array dimension is recognized, which is all the host emits.
func ParseTypeRef(s string) TypeRef {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "[]") {
		return TypeRef{Name: strings.TrimSpace(strings.TrimSuffix(s, "[]")), Array: true}
	}
	return TypeRef{Name: s}
}

// Render returns the source form of the type.
func (t TypeRef) Render() string {
	if t.Array {
		return t.Name + "[]"
	}
	return t.Name
}

// Erasure returns Name without type arguments.
func (t TypeRef) Erasure() string {
	if i := strings.IndexByte(t.Name, '<'); i >= 0 {
		return t.Name[:i]
	}
	return t.Name
}

// IsPrimitive reports whether the (component) type is a primitive or void.
func (t TypeRef) IsPrimitive() bool {
	return primitives[t.Erasure()]
}

// ImportName returns the class that must be imported for this type, or ""
// when no import is needed (primitives, arrays of primitives, void and
// types without a package).
func (t TypeRef) ImportName() string {
	if t.IsPrimitive() {
		return ""
	}
	name := t.Erasure()
	if !strings.Contains(name, ".") {
		return ""
	}
	return name
}

// ActionMethod is the reflected signature of one method of a proxy action
// implementation. Annotated is true when the method carries the rule-action
// annotation; only annotated methods are exposed to rule authors.
type ActionMethod struct {
	Name      string    `json:"name"`
	Annotated bool      `json:"annotated"`
	Params    []TypeRef `json:"params"`
	Returns   TypeRef   `json:"returns"`
}

// ProxyAction is a runtime-registered action implementation.
//
// Class is the fully-qualified class name of the implementation, Owner the
// UID of the device that registered it. HasScope is false when the class
// carries no scope annotation; such classes are skipped by the synthesizer.
type ProxyAction struct {
	Class    string         `json:"class"`
	Owner    string         `json:"owner"`
	Scope    string         `json:"scope,omitempty"`
	HasScope bool           `json:"has_scope"`
	Methods  []ActionMethod `json:"methods"`
}

// Package returns the package part of Class ("" for the default package).
func (p ProxyAction) Package() string {
	if i := strings.LastIndexByte(p.Class, '.'); i >= 0 {
		return p.Class[:i]
	}
	return ""
}

// SimpleName returns the class name without its package.
func (p ProxyAction) SimpleName() string {
	if i := strings.LastIndexByte(p.Class, '.'); i >= 0 {
		return p.Class[i+1:]
	}
	return p.Class
}

// AnnotatedMethods returns the annotated methods in declaration order.
func (p ProxyAction) AnnotatedMethods() []ActionMethod {
	var methods []ActionMethod
	for _, m := range p.Methods {
		if m.Annotated {
			methods = append(methods, m)
		}
	}
	return methods
}
