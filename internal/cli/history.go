package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// History is the result of the history command, newest build first.
type History struct {
	Builds []BuildSummary `json:"builds"`
}

func (h History) String() string {
	if len(h.Builds) == 0 {
		return "no builds recorded"
	}
	lines := make([]string, len(h.Builds))
	for i, b := range h.Builds {
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent rebuilds from the journal",
		Long: `Show the most recent rebuild attempts recorded in the build journal,
newest first. Requires a journal in the configuration.

Example:
  ruleforge history --limit 5
  ruleforge history --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of builds to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	if s.journal == nil {
		return NewExitError(ExitCommandError, "no journal configured")
	}
	builds, err := s.journal.Recent(commandContext(cmd), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	h := History{Builds: make([]BuildSummary, len(builds))}
	for i, b := range builds {
		h.Builds[i] = summarize(b)
	}
	return s.out.Success(h)
}
