package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/me/ecswait/internal/config"
	"github.com/me/ecswait/internal/sensor"
	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	var sf specFlags
	var awsCfg config.AWSConfig
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check once whether a cluster has drained",
		Long: "List the cluster's tasks once. Exits 0 when no tasks are left, " +
			"2 when tasks are still running and 1 when the listing failed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sf.spec(cmd)
			if err != nil {
				return err
			}
			filter, err := localFilter(cmd.Context(), spec, "check", sf.strict)
			if err != nil {
				return err
			}

			l, err := newTaskLister(cmd.Context(), awsCfg, logger)
			if err != nil {
				return err
			}

			decision := sensor.NewWithFilter(filter, l, logger).Check(cmd.Context())
			if err := printDecision(cmd.OutOrStdout(), decision, asJSON); err != nil {
				return err
			}

			switch decision.State {
			case model.DecisionComplete:
				return nil
			case model.DecisionPending:
				return &ExitError{Code: ExitPending}
			default:
				return &ExitError{Code: ExitFailed, Err: decision.Err}
			}
		},
	}

	sf.register(cmd, false)
	registerAWSFlags(cmd, &awsCfg)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decision as JSON")
	return cmd
}

func printDecision(w io.Writer, d model.Decision, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	switch d.State {
	case model.DecisionFailed:
		fmt.Fprintf(w, "Cluster %s: %s (%s)\n", d.Cluster, d.State, d.Message())
	default:
		fmt.Fprintf(w, "Cluster %s: %d tasks left (%s)\n", d.Cluster, d.Count, d.State)
	}
	return nil
}
