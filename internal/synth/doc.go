// Package synth renders the generated compilation units and writes them
// into the staging directory.
//
// Rendering is pure: RenderConstants and RenderInterface turn explicit
// metadata into source text and never touch the filesystem. The
// Synthesizer gathers that metadata from the host, renders it and writes a
// unit only when its text differs from the text it last emitted for the
// same class. That comparison, held in a Cache owned by the Synthesizer, is
// the only thing that decides whether a unit is rewritten.
//
// Generated units:
//
//	<helper>.Items    one constant per data point
//	<helper>.Things   one constant per device
//	<helper>.Scopes   one constant per proxy action scope
//	<pkg>.<Simple>    one interface per proxy action class
package synth
