package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pterodactyl/panel/internal/service"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage servers",
		Long:  "Create, list and delete servers. Deleting a server revokes every daemon key bound to it.",
	}

	cmd.AddCommand(newServerCreateCmd())
	cmd.AddCommand(newServerListCmd())
	cmd.AddCommand(newServerDeleteCmd())

	return cmd
}

func newServerCreateCmd() *cobra.Command {
	var (
		name    string
		ownerID int64
		nodeID  int64
	)

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a server",
		Example: `  panel server create --name survival --owner 2 --node 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerCreate(name, ownerID, nodeID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Server name (required)")
	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner user ID (required)")
	cmd.Flags().Int64Var(&nodeID, "node", 0, "Hosting node ID (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("node")

	return cmd
}

func runServerCreate(name string, ownerID, nodeID int64) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := c.servers.Create(context.Background(), service.CreateServerInput{
		Name:    name,
		OwnerID: ownerID,
		NodeID:  nodeID,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	fmt.Printf("Created server %q (id %d, uuid %s)\n", srv.Name, srv.ID, srv.UUID)
	return nil
}

func newServerListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runServerList(jsonOutput bool) error {
	_, store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	servers, err := store.ListServers(context.Background())
	if err != nil {
		return fmt.Errorf("list servers: %w", err)
	}

	if jsonOutput {
		return printJSON(servers)
	}

	if len(servers) == 0 {
		fmt.Println("No servers. Use 'panel server create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-20s %-6s %-6s %s\n", "ID", "NAME", "OWNER", "NODE", "UUID")
	fmt.Printf("%-6s %-20s %-6s %-6s %s\n", "--", "----", "-----", "----", "----")
	for _, s := range servers {
		fmt.Printf("%-6d %-20s %-6d %-6d %s\n", s.ID, s.Name, s.OwnerID, s.NodeID, s.UUID)
	}
	return nil
}

func newServerDeleteCmd() *cobra.Command {
	var serverID int64

	cmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"rm"},
		Short:   "Delete a server and revoke its daemon keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerDelete(serverID)
		},
	}

	cmd.Flags().Int64Var(&serverID, "id", 0, "Server ID (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runServerDelete(serverID int64) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := c.servers.Delete(context.Background(), serverID); err != nil {
		return fmt.Errorf("delete server %d: %w", serverID, err)
	}
	fmt.Printf("Deleted server %d\n", serverID)
	return nil
}
