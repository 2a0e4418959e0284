package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pterodactyl/panel/internal/service"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage daemon nodes",
	}

	cmd.AddCommand(newNodeCreateCmd())
	cmd.AddCommand(newNodeListCmd())

	return cmd
}

func newNodeCreateCmd() *cobra.Command {
	var name, url, token string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a node",
		Example: `  panel node create --name node-1 --url https://node1.example.com:8080
  panel node create --name node-2 --url http://10.0.0.5:8080 --token <daemon token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeCreate(name, url, token)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Node name (required)")
	cmd.Flags().StringVar(&url, "url", "", "Daemon base URL (required)")
	cmd.Flags().StringVar(&token, "token", "", "Daemon token (generated if omitted)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runNodeCreate(name, url, token string) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	node, err := c.nodes.Create(context.Background(), service.CreateNodeInput{
		Name:        name,
		DaemonURL:   url,
		DaemonToken: token,
	})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	fmt.Printf("Created node %q (id %d)\n", node.Name, node.ID)
	fmt.Println()
	fmt.Println("  Daemon token (configure it on the node, it is not shown again):")
	fmt.Printf("  %s\n", node.DaemonToken)
	return nil
}

func newNodeListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodeList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runNodeList(jsonOutput bool) error {
	_, store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	nodes, err := store.ListNodes(context.Background())
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	if jsonOutput {
		return printJSON(nodes)
	}

	if len(nodes) == 0 {
		fmt.Println("No nodes. Use 'panel node create' to register one.")
		return nil
	}

	fmt.Printf("%-6s %-20s %s\n", "ID", "NAME", "DAEMON URL")
	fmt.Printf("%-6s %-20s %s\n", "--", "----", "----------")
	for _, n := range nodes {
		fmt.Printf("%-6d %-20s %s\n", n.ID, n.Name, n.DaemonURL)
	}
	return nil
}
