package registry

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ruleforge/internal/ir"
)

// Thing is a device and its current status.
type Thing struct {
	UID    string
	Status ir.Status
}

// State is a complete description of the host registry. Entries keep the
// order in which the source declared them.
type State struct {
	Items   []string
	Things  []Thing
	Actions []ir.ProxyAction
}

// LoadError describes an invalid registry source.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Load reads a registry file.
func Load(path string) (*State, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return LoadString(string(src), path)
}

// LoadString parses registry source. filename is used in error positions.
func LoadString(src, filename string) (*State, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(filename, err)
	}

	st := &State{}
	var err error
	if st.Items, err = parseItems(v.LookupPath(cue.ParsePath("items"))); err != nil {
		return nil, wrap(filename, err)
	}
	if st.Things, err = parseThings(v.LookupPath(cue.ParsePath("things"))); err != nil {
		return nil, wrap(filename, err)
	}
	if st.Actions, err = parseActions(v.LookupPath(cue.ParsePath("actions"))); err != nil {
		return nil, wrap(filename, err)
	}
	return st, nil
}

func parseItems(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, err
	}
	var items []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	return items, nil
}

func parseThings(v cue.Value) ([]Thing, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, err
	}
	var things []Thing
	for iter.Next() {
		uid := iter.Selector().Unquoted()
		status := ir.StatusOnline
		if sv := iter.Value().LookupPath(cue.ParsePath("status")); sv.Exists() {
			s, err := sv.String()
			if err != nil {
				return nil, err
			}
			parsed, ok := ir.ParseStatus(s)
			if !ok {
				return nil, &LoadError{Message: fmt.Sprintf("thing %q: unknown status %q", uid, s), Pos: sv.Pos()}
			}
			status = parsed
		}
		things = append(things, Thing{UID: uid, Status: status})
	}
	return things, nil
}

func parseActions(v cue.Value) ([]ir.ProxyAction, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, err
	}
	var actions []ir.ProxyAction
	for iter.Next() {
		class := iter.Selector().Unquoted()
		av := iter.Value()

		owner, err := av.LookupPath(cue.ParsePath("thing")).String()
		if err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("action %q: thing is required", class), Pos: av.Pos()}
		}
		p := ir.ProxyAction{Class: class, Owner: owner}
		if sv := av.LookupPath(cue.ParsePath("scope")); sv.Exists() {
			if p.Scope, err = sv.String(); err != nil {
				return nil, err
			}
			p.HasScope = true
		}
		if p.Methods, err = parseMethods(av.LookupPath(cue.ParsePath("methods"))); err != nil {
			return nil, fmt.Errorf("action %q: %w", class, err)
		}
		actions = append(actions, p)
	}
	return actions, nil
}

func parseMethods(v cue.Value) ([]ir.ActionMethod, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, err
	}
	var methods []ir.ActionMethod
	for iter.Next() {
		mv := iter.Value()
		name, err := mv.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, &LoadError{Message: "method name is required", Pos: mv.Pos()}
		}
		m := ir.ActionMethod{Name: name, Annotated: true, Returns: ir.TypeRef{Name: "void"}}
		if av := mv.LookupPath(cue.ParsePath("annotated")); av.Exists() {
			if m.Annotated, err = av.Bool(); err != nil {
				return nil, err
			}
		}
		if rv := mv.LookupPath(cue.ParsePath("returns")); rv.Exists() {
			s, err := rv.String()
			if err != nil {
				return nil, err
			}
			m.Returns = ir.ParseTypeRef(s)
		}
		if pv := mv.LookupPath(cue.ParsePath("params")); pv.Exists() {
			params, err := pv.List()
			if err != nil {
				return nil, err
			}
			for params.Next() {
				s, err := params.Value().String()
				if err != nil {
					return nil, err
				}
				m.Params = append(m.Params, ir.ParseTypeRef(s))
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// cueError keeps the first position CUE reports.
func cueError(filename string, err error) error {
	le := &LoadError{Path: filename, Message: err.Error()}
	if ps := cueerrors.Positions(err); len(ps) > 0 {
		le.Pos = ps[0]
	}
	return le
}

func wrap(filename string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		le.Path = filename
		return err
	}
	return cueError(filename, err)
}
