package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleforge/internal/journal"
)

// BuildSummary is the CLI view of one rebuild attempt.
type BuildSummary struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Trigger     string    `json:"trigger"`
	Started     time.Time `json:"started"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	Sources     int       `json:"sources"`
	Classes     int       `json:"classes"`
	Archive     string    `json:"archive,omitempty"`
	Diagnostics string    `json:"diagnostics,omitempty"`
}

func summarize(b journal.Build) BuildSummary {
	return BuildSummary{
		ID:          b.ID,
		Seq:         b.Seq,
		Trigger:     b.Trigger,
		Started:     b.Started,
		DurationMS:  b.Duration.Milliseconds(),
		Success:     b.Success,
		Sources:     b.Sources,
		Classes:     b.Classes,
		Diagnostics: b.Diagnostics,
	}
}

func (s BuildSummary) String() string {
	result := "ok"
	if !s.Success {
		result = "failed"
	}
	line := fmt.Sprintf("#%d %s %s trigger=%s sources=%d classes=%d duration=%dms",
		s.Seq, s.Started.Format(time.RFC3339), result, s.Trigger, s.Sources, s.Classes, s.DurationMS)
	if s.Archive != "" {
		line += "\narchive: " + s.Archive
	}
	return line
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the dependency and helper archives once",
		Long: `Activate once: build the dependency archive from the host modules,
synthesize the helper sources from the registry, copy the user sources of
the library directory, compile everything and publish the helper archive.

Exits with 1 when the helper archive could not be rebuilt; the previously
published archive is left in place.

Example:
  ruleforge build --config ruleforge.yaml
  ruleforge build --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, rootOpts)
		},
	}
	return cmd
}

func runBuild(cmd *cobra.Command, opts *RootOptions) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.close()

	host, err := s.loadHost()
	if err != nil {
		return err
	}

	eng := s.newEngine(host, nil)
	if err := eng.Activate(commandContext(cmd)); err != nil {
		return WrapExitError(ExitCommandError, "failed to activate", err)
	}
	defer eng.Deactivate()

	last, ok := eng.LastBuild()
	if !ok {
		return NewExitError(ExitFailure, "no build ran")
	}
	summary := summarize(last)
	if !last.Success {
		if err := s.out.Error(CodeBuildFailed, "helper archive rebuild failed", summary); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "helper archive rebuild failed")
	}
	summary.Archive = s.cfg.HelperArchivePath()
	return s.out.Success(summary)
}
