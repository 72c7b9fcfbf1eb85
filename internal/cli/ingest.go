package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stocklog/internal/intake"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <batch-file>",
		Short: "Apply a batch file as one processing unit",
		Long: `Apply a JSON or YAML batch of host notifications as one processing unit.

The format is chosen from the file extension (.yaml, .yml or .json).

Examples:
  stocklog ingest ./order-1001.yaml
  stocklog ingest --db ./stocklog.db --format json ./batch.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runIngest(opts *RootOptions, path string, cmd *cobra.Command) error {
	batch, err := intake.DecodeFile(path)
	if err != nil {
		return opts.fail(cmd, CodeInput, WrapExitError(ExitCommandError, "failed to read batch", err))
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	sum, err := s.applier().Apply(ctx, batch)
	if err != nil {
		return opts.fail(cmd, CodeStore, WrapExitError(ExitFailure, "failed to apply batch", err))
	}

	return opts.formatter(cmd).Success(sum, func(w io.Writer) {
		fmt.Fprintf(w, "Unit %s: %d event(s), %d applied, %d skipped\n",
			sum.UnitID, sum.Events, sum.Applied, sum.Skipped)
		fmt.Fprintf(w, "  Committed: %d\n", sum.Stats.Committed)
		fmt.Fprintf(w, "  No-ops:    %d\n", sum.Stats.NoOps)
		fmt.Fprintf(w, "  Skipped:   %d\n", sum.Stats.Skipped)
		fmt.Fprintf(w, "  Failed:    %d\n", sum.Stats.Failed)
	})
}
