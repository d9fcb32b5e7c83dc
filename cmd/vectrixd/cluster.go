package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage cluster membership and leadership",
}

var clusterAddFollowerCmd = &cobra.Command{
	Use:   "add-follower",
	Short: "Ask the leader to add a voter to the Raft configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		leaderAddr, _ := cmd.Flags().GetString("leader")
		nodeID, _ := cmd.Flags().GetString("node-id")
		endpoint, _ := cmd.Flags().GetString("endpoint")

		if nodeID == "" || endpoint == "" {
			return fmt.Errorf("--node-id and --endpoint are required")
		}
		if err := requestAddFollower(leaderAddr, nodeID, endpoint); err != nil {
			return err
		}
		fmt.Printf("✓ %s (%s) added as a voter\n", nodeID, endpoint)
		return nil
	},
}

var clusterSetLeaderCmd = &cobra.Command{
	Use:   "set-leader",
	Short: "Transfer leadership away from the current leader",
	RunE: func(cmd *cobra.Command, args []string) error {
		leaderAddr, _ := cmd.Flags().GetString("leader")
		c := newAdminClient(leaderAddr)

		var resp envelope
		if err := c.post("/admin/setLeader", map[string]string{}, &resp); err != nil {
			return err
		}
		if resp.RetCode != 0 {
			return fmt.Errorf("setLeader failed: %s", resp.Msg)
		}
		fmt.Println("✓ leadership transfer requested")
		return nil
	},
}

func init() {
	clusterCmd.AddCommand(clusterAddFollowerCmd)
	clusterCmd.AddCommand(clusterSetLeaderCmd)

	clusterAddFollowerCmd.Flags().String("leader", "http://127.0.0.1:8080", "HTTP address of the current leader")
	clusterAddFollowerCmd.Flags().String("node-id", "", "Node ID of the joining node (required)")
	clusterAddFollowerCmd.Flags().String("endpoint", "", "Raft bind address of the joining node (required)")

	clusterSetLeaderCmd.Flags().String("leader", "http://127.0.0.1:8080", "HTTP address of the current leader")
}
