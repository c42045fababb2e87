package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleforge/internal/engine"
	"github.com/roach88/ruleforge/internal/filemgr"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Kind    string
	Recurse bool
}

// Unit is one listed compilation unit.
type Unit struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Location string `json:"location"`
}

// UnitList is the result of the list command.
type UnitList struct {
	Package    string `json:"package"`
	Generation uint64 `json:"generation"`
	Units      []Unit `json:"units"`
}

func (l UnitList) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (generation %d, %d units)", displayPackage(l.Package), l.Generation, len(l.Units))
	for _, u := range l.Units {
		fmt.Fprintf(&b, "\n  %s\t%s", u.Name, u.Location)
	}
	return b.String()
}

func displayPackage(pkg string) string {
	if pkg == "" {
		return "<default package>"
	}
	return pkg
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [package]",
		Short: "List the units a compilation sees in a package",
		Long: `List the class path units of a package as the compiler sees them: the
standard classpath followed by every archive in the library directory.

Nothing is built; the listing reflects the archives published right now.

Example:
  ruleforge list org.smarthomej.automation.javarule
  ruleforge list org.openhab.core --recurse`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg := ""
			if len(args) == 1 {
				pkg = args[0]
			}
			return runList(cmd, opts, pkg)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "class", "unit kind (class|source)")
	cmd.Flags().BoolVarP(&opts.Recurse, "recurse", "r", false, "include subpackages")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, pkg string) error {
	kind, ok := filemgr.ParseKind(opts.Kind)
	if !ok || kind == filemgr.KindOther {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be class or source", opts.Kind))
	}

	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	overlay, err := engine.Inspect(s.cfg, s.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to index library directory", err)
	}
	units, err := overlay.List(filemgr.LocationClassPath, pkg, filemgr.Kinds(kind), opts.Recurse)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list package", err)
	}

	result := UnitList{
		Package:    pkg,
		Generation: overlay.Snapshot().Generation,
		Units:      make([]Unit, 0, len(units)),
	}
	for _, u := range units {
		name, err := overlay.BinaryNameOf(u)
		if err != nil {
			s.logger.Warn("skipping unit without binary name", "path", u.String(), "error", err)
			continue
		}
		result.Units = append(result.Units, Unit{Name: name, Kind: u.Kind.String(), Location: u.String()})
	}
	return s.out.Success(result)
}
