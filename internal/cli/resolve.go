package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleforge/internal/engine"
	"github.com/roach88/ruleforge/internal/loader"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Output string
}

// Resolution is the result of the resolve command.
type Resolution struct {
	Class string `json:"class"`
	Size  int    `json:"size"`
	// Archive is the library archive that served the class; empty when the
	// host (dependency archive or standard classpath) did.
	Archive string `json:"archive,omitempty"`
	Output  string `json:"output,omitempty"`
}

func (r Resolution) String() string {
	origin := "host"
	if r.Archive != "" {
		origin = r.Archive
	}
	line := fmt.Sprintf("%s: %d bytes from %s", r.Class, r.Size, origin)
	if r.Output != "" {
		line += "\nwritten to " + r.Output
	}
	return line
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <class>",
		Short: "Resolve a class the way rule code loads it",
		Long: `Resolve a binary class name through the composite loader: the host
first, then the archives of the library directory.

Exits with 1 when the class cannot be found.

Example:
  ruleforge resolve org.smarthomej.automation.javarule.Items
  ruleforge resolve org.example.MyRule -o MyRule.class`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the class bytes to this file")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, class string) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	overlay, err := engine.Inspect(s.cfg, s.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to index library directory", err)
	}

	snap := overlay.Snapshot()
	data, err := snap.Loader.Resolve(class)
	if err != nil {
		if errors.Is(err, loader.ErrClassNotFound) {
			if err := s.out.Error(CodeClassNotFound, "class not found", class); err != nil {
				return err
			}
			return WrapExitError(ExitFailure, "class not found", err)
		}
		return WrapExitError(ExitFailure, "failed to resolve class", err)
	}

	result := Resolution{Class: class, Size: len(data)}
	if result.Archive, err = snap.Loader.Origin(class); err != nil {
		return WrapExitError(ExitFailure, "failed to resolve class", err)
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write class", err)
		}
		result.Output = opts.Output
	}
	return s.out.Success(result)
}
