package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var state, cluster string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List waits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if cluster != "" {
				q.Set("cluster", cluster)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/v1/waits/"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := client.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("list waits: %w", err)
			}

			var waits []*model.Wait
			if err := json.Unmarshal(resp.Data, &waits); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(waits) == 0 {
				fmt.Fprintln(out, "No waits found.")
				return nil
			}

			fmt.Fprintf(out, "%-41s  %-10s  %-30s  %-6s  %s\n", "ID", "STATE", "CLUSTER", "CHECKS", "CREATED")
			fmt.Fprintf(out, "%-41s  %-10s  %-30s  %-6s  %s\n", "----", "-----", "-------", "------", "-------")
			for _, w := range waits {
				fmt.Fprintf(out, "%-41s  %-10s  %-30s  %-6d  %s\n",
					w.ID, w.State, w.Cluster, w.Polls, w.CreatedAt.Format(time.RFC3339))
			}

			sum := model.Summarize(waits)
			fmt.Fprintf(out, "\n%d waiting, %d completed, %d failed, %d timed out, %d skipped, %d cancelled\n",
				sum.Waiting, sum.Completed, sum.Failed, sum.TimedOut, sum.Skipped, sum.Cancelled)
			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "(%d of %d shown)\n", len(waits), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only waits in this state (WAITING, COMPLETED, ...)")
	cmd.Flags().StringVar(&cluster, "cluster", "", "Only waits for this cluster")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of waits (server default 20)")
	return cmd
}
