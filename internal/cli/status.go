package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <wait_id>",
		Short: "Show the status of a wait",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := client.GetWait(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get wait: %w", err)
			}
			printWait(cmd.OutOrStdout(), w)
			return nil
		},
	}
}

func printWait(out io.Writer, w *model.Wait) {
	fmt.Fprintf(out, "Wait: %s\n", w.ID)
	fmt.Fprintf(out, "  Cluster:   %s\n", w.Cluster)
	fmt.Fprintf(out, "  Filter:    %s\n", w.Filter.String())
	fmt.Fprintf(out, "  State:     %s\n", w.State)
	fmt.Fprintf(out, "  Checks:    %d (last count %d)\n", w.Polls, w.LastCount)
	if w.Error != "" {
		fmt.Fprintf(out, "  Error:     %s\n", w.Error)
	}
	if len(w.Labels) > 0 {
		labels := make([]string, 0, len(w.Labels))
		for k, v := range w.Labels {
			labels = append(labels, k+"="+v)
		}
		fmt.Fprintf(out, "  Labels:    %s\n", strings.Join(labels, ", "))
	}
	fmt.Fprintf(out, "  Created:   %s\n", w.CreatedAt.Format(time.RFC3339))
	if w.LastPolledAt != nil {
		fmt.Fprintf(out, "  Polled:    %s\n", w.LastPolledAt.Format(time.RFC3339))
	}
	if w.CompletedAt != nil {
		fmt.Fprintf(out, "  Completed: %s\n", w.CompletedAt.Format(time.RFC3339))
	}
}
