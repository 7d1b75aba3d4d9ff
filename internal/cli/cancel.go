package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/ecswait/pkg/model"
	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <wait_id>",
		Short: "Cancel a waiting wait",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			resp, err := client.Put(cmd.Context(), "/api/v1/waits/"+id+"/cancel", nil)
			if err != nil {
				return fmt.Errorf("cancel wait: %w", err)
			}

			var w model.Wait
			if err := json.Unmarshal(resp.Data, &w); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wait %s: %s after %d checks\n", w.ID, w.State, w.Polls)
			return nil
		},
	}
}
