package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/me/ecswait/internal/config"
	"github.com/me/ecswait/internal/sensor"
	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

// newWaitCmd blocks in-process until the cluster drains, without a server.
func newWaitCmd() *cobra.Command {
	var sf specFlags
	var awsCfg config.AWSConfig

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until a cluster has drained",
		Long: "Check the cluster immediately and then every --interval until no tasks are left. " +
			"A timeout fails the command unless --soft-fail is set, in which case the wait is reported as skipped.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sf.spec(cmd)
			if err != nil {
				return err
			}
			filter, err := localFilter(cmd.Context(), spec, "wait", sf.strict)
			if err != nil {
				return err
			}

			l, err := newTaskLister(cmd.Context(), awsCfg, logger)
			if err != nil {
				return err
			}
			poller := sensor.NewWithFilter(filter, l, logger)

			res, err := sensor.PollUntil(cmd.Context(), poller.Check, sensor.Options{
				Interval: spec.Interval.Std(),
				Timeout:  spec.PollTimeout(),
				SoftFail: spec.SoftFail,
				Clock:    waitClock,
				Logger:   logger,
			})

			out := cmd.OutOrStdout()
			switch {
			case err == nil:
				fmt.Fprintf(out, "Cluster %s drained after %d checks (%s)\n", filter.Cluster(), res.Polls, res.Elapsed.Round(time.Millisecond))
				return nil
			case errors.Is(err, model.ErrSkipped):
				fmt.Fprintf(out, "Skipped: %v\n", err)
				return nil
			default:
				return &ExitError{Code: ExitFailed, Err: err}
			}
		},
	}

	sf.register(cmd, true)
	registerAWSFlags(cmd, &awsCfg)
	return cmd
}

// waitClock is nil (wall clock) outside tests.
var waitClock sensor.Clock
