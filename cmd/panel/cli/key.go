package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Inspect and revoke daemon keys",
		Long:  "Obtain the daemon key a user would receive for a server, or revoke keys.",
	}

	cmd.AddCommand(newKeyGetCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key get ----------

func newKeyGetCmd() *cobra.Command {
	var (
		userID   int64
		serverID int64
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a usable daemon key for a user and server",
		Long: `Print the daemon key for the given user and server, issuing one if the
user is entitled to it and has none yet. With --refresh (the default) an
expired key is rotated first.`,
		Example: `  panel key get --user 2 --server 3
  panel key get --user 2 --server 3 --refresh=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyGet(userID, serverID, refresh)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User ID (required)")
	cmd.Flags().Int64Var(&serverID, "server", 0, "Server ID (required)")
	cmd.Flags().BoolVar(&refresh, "refresh", true, "Rotate the key if it has expired")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("server")

	return cmd
}

func runKeyGet(userID, serverID int64, refresh bool) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	srv, err := store.GetServer(ctx, serverID)
	if err != nil {
		return fmt.Errorf("server %d: %w", serverID, err)
	}

	secret, err := c.provider.Handle(ctx, *srv, *user, refresh)
	if err != nil {
		return fmt.Errorf("daemon key for user %d on server %d: %w", userID, serverID, err)
	}
	fmt.Println(secret)
	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var userID, serverID int64

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke daemon keys",
		Long: `Revoke every key of a user (--user), every key bound to a server (--server),
or the single key of a user on a server (both).`,
		Example: `  panel key revoke --user 2
  panel key revoke --server 3
  panel key revoke --user 2 --server 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(userID, serverID)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User ID")
	cmd.Flags().Int64Var(&serverID, "server", 0, "Server ID")
	cmd.MarkFlagsOneRequired("user", "server")

	return cmd
}

func runKeyRevoke(userID, serverID int64) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	switch {
	case userID != 0 && serverID != 0:
		removed, err := c.revoker.RevokePair(ctx, userID, serverID)
		if err != nil {
			return fmt.Errorf("revoke key: %w", err)
		}
		if !removed {
			fmt.Printf("User %d holds no key for server %d\n", userID, serverID)
			return nil
		}
		fmt.Printf("Revoked key of user %d on server %d\n", userID, serverID)
	case userID != 0:
		n, err := c.revoker.RevokeAll(ctx, userID)
		if err != nil {
			return fmt.Errorf("revoke keys: %w", err)
		}
		fmt.Printf("Revoked %d key(s) of user %d\n", n, userID)
	default:
		n, err := c.revoker.RevokeServer(ctx, serverID)
		if err != nil {
			return fmt.Errorf("revoke keys: %w", err)
		}
		fmt.Printf("Revoked %d key(s) on server %d\n", n, serverID)
	}
	return nil
}
