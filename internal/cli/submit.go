package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var sf specFlags

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a wait to the ecswait server",
		Long:  "Register a wait with the server. The server renders templated fields and polls the cluster until it drains.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sf.spec(cmd)
			if err != nil {
				return err
			}
			logger.Debug("submitting wait", "cluster", spec.Cluster, "interval", spec.Interval, "timeout", spec.Timeout)

			path := "/api/v1/waits/"
			if sf.strict {
				path += "?strict=true"
			}
			resp, err := client.Post(cmd.Context(), path, spec)
			if err != nil {
				return fmt.Errorf("create wait: %w", err)
			}

			var w model.Wait
			if err := json.Unmarshal(resp.Data, &w); err != nil {
				return fmt.Errorf("parse wait response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wait created: %s\n", w.ID)
			fmt.Fprintf(out, "  Cluster:  %s\n", w.Cluster)
			fmt.Fprintf(out, "  Interval: %s\n", w.Interval)
			if w.Timeout > 0 {
				fmt.Fprintf(out, "  Timeout:  %s\n", w.Timeout)
			} else {
				fmt.Fprintf(out, "  Timeout:  none\n")
			}
			return nil
		},
	}

	sf.register(cmd, true)
	cmd.Flags().StringArrayVar(&sf.labels, "label", nil, "Label as key=value (repeatable)")
	return cmd
}
