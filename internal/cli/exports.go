package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleforge/internal/baseline"
)

// ModuleExports describes one host module.
type ModuleExports struct {
	Name    string   `json:"name"`
	Allowed bool     `json:"allowed"`
	Exports []string `json:"exports"`
}

// ExportsReport is the result of the exports command.
type ExportsReport struct {
	Modules []ModuleExports `json:"modules"`
	// Missing lists allow-listed modules the host does not have.
	Missing []string `json:"missing,omitempty"`
}

func (r ExportsReport) String() string {
	var b strings.Builder
	for i, m := range r.Modules {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := " "
		if m.Allowed {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %s (%d packages)", mark, m.Name, len(m.Exports))
		for _, pkg := range m.Exports {
			fmt.Fprintf(&b, "\n    %s", pkg)
		}
	}
	if len(r.Missing) > 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("missing: " + strings.Join(r.Missing, ", "))
	}
	return b.String()
}

// NewExportsCommand creates the exports command.
func NewExportsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "Show host modules and the packages they export",
		Long: `Show every module in the configured module directory, the packages it
exports and whether it is on the allow-list (marked with *). Only exported
packages of allow-listed modules go into the dependency archive.

Example:
  ruleforge exports --config ruleforge.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExports(cmd, rootOpts)
		},
	}
	return cmd
}

func runExports(cmd *cobra.Command, opts *RootOptions) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.ModuleDir == "" {
		return NewExitError(ExitCommandError, "no module_dir configured")
	}
	modules, err := baseline.NewDirRegistry(s.cfg.ModuleDir, s.logger).Modules()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read modules", err)
	}

	allowed := baseline.AllowList(baseline.DefaultModules, s.cfg.AdditionalModules)
	present := make(map[string]bool, len(modules))
	report := ExportsReport{Modules: make([]ModuleExports, 0, len(modules))}
	for _, m := range modules {
		present[m.Name()] = true
		header, _ := m.Header(baseline.ExportHeader)
		exports := baseline.ParseExports(header)
		if exports == nil {
			exports = []string{}
		}
		report.Modules = append(report.Modules, ModuleExports{
			Name:    m.Name(),
			Allowed: allowed[m.Name()],
			Exports: exports,
		})
	}
	for _, name := range baseline.SortedNames(allowed) {
		if !present[name] {
			report.Missing = append(report.Missing, name)
		}
	}
	return s.out.Success(report)
}
