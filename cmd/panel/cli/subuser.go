package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSubuserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subuser",
		Short: "Manage delegated server access",
		Long: `Grant and withdraw subuser access. Adding a subuser issues its daemon key;
removing one revokes it.`,
	}

	cmd.AddCommand(newSubuserAddCmd())
	cmd.AddCommand(newSubuserListCmd())
	cmd.AddCommand(newSubuserRemoveCmd())

	return cmd
}

func newSubuserAddCmd() *cobra.Command {
	var (
		serverID int64
		email    string
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Give a user access to a server",
		Example: `  panel subuser add --server 3 --email friend@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubuserAdd(serverID, email)
		},
	}

	cmd.Flags().Int64Var(&serverID, "server", 0, "Server ID (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email of the user to add (required)")
	cmd.MarkFlagRequired("server")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runSubuserAdd(serverID int64, email string) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	sub, err := c.subusers.Add(context.Background(), serverID, email)
	if err != nil {
		return fmt.Errorf("add subuser: %w", err)
	}
	fmt.Printf("Added user %d to server %d (subuser id %d)\n", sub.UserID, sub.ServerID, sub.ID)
	return nil
}

func newSubuserListCmd() *cobra.Command {
	var (
		serverID   int64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the subusers of a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubuserList(serverID, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&serverID, "server", 0, "Server ID (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("server")

	return cmd
}

func runSubuserList(serverID int64, jsonOutput bool) error {
	_, store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	subs, err := store.ListSubusers(context.Background(), serverID)
	if err != nil {
		return fmt.Errorf("list subusers: %w", err)
	}

	if jsonOutput {
		return printJSON(subs)
	}

	if len(subs) == 0 {
		fmt.Printf("Server %d has no subusers.\n", serverID)
		return nil
	}

	fmt.Printf("%-6s %-8s %s\n", "ID", "USER", "ADDED")
	fmt.Printf("%-6s %-8s %s\n", "--", "----", "-----")
	for _, s := range subs {
		fmt.Printf("%-6d %-8d %s\n", s.ID, s.UserID, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func newSubuserRemoveCmd() *cobra.Command {
	var subuserID int64

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Withdraw a subuser grant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubuserRemove(subuserID)
		},
	}

	cmd.Flags().Int64Var(&subuserID, "id", 0, "Subuser ID (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runSubuserRemove(subuserID int64) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := c.subusers.Remove(context.Background(), subuserID); err != nil {
		return fmt.Errorf("remove subuser %d: %w", subuserID, err)
	}
	fmt.Printf("Removed subuser %d\n", subuserID)
	return nil
}
