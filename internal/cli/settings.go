package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewSettingsCommand creates the settings command group.
func NewSettingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change capture settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsGet(rootOpts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting",
		Long: `Change a setting.

Keys:
  trace-origin  record the source location of each change (true|false)

Example:
  stocklog settings set trace-origin true`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(rootOpts, args[0], args[1], cmd)
		},
	})

	return cmd
}

func runSettingsGet(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	settings, err := s.backend.Settings(ctx)
	if err != nil {
		return opts.fail(cmd, CodeStore, WrapExitError(ExitFailure, "failed to read settings", err))
	}
	return opts.formatter(cmd).Success(settings, func(w io.Writer) {
		fmt.Fprintf(w, "trace-origin: %t\n", settings.TraceOrigin)
	})
}

func runSettingsSet(opts *RootOptions, key, value string, cmd *cobra.Command) error {
	if key != "trace-origin" {
		return opts.fail(cmd, CodeInput, NewExitError(ExitCommandError, fmt.Sprintf("unknown setting %q", key)))
	}
	on, err := strconv.ParseBool(value)
	if err != nil {
		return opts.fail(cmd, CodeInput, WrapExitError(ExitCommandError, "invalid value for trace-origin", err))
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	settings, err := s.backend.Settings(ctx)
	if err != nil {
		return opts.fail(cmd, CodeStore, WrapExitError(ExitFailure, "failed to read settings", err))
	}
	settings.TraceOrigin = on
	if err := s.backend.SaveSettings(ctx, settings); err != nil {
		return opts.fail(cmd, CodeStore, WrapExitError(ExitFailure, "failed to save settings", err))
	}

	return opts.formatter(cmd).Success(settings, func(w io.Writer) {
		fmt.Fprintf(w, "trace-origin: %t\n", settings.TraceOrigin)
	})
}
