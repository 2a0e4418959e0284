package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pterodactyl/panel/internal/service"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage panel users",
		Long:  "Create, list and delete panel accounts. Deleting a user revokes every daemon key it holds.",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserDeleteCmd())

	return cmd
}

// ---------- user create ----------

func newUserCreateCmd() *cobra.Command {
	var (
		username string
		email    string
		password string
		admin    bool
		noLogin  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Example: `  panel user create --username admin --email admin@example.com --admin
  panel user create --username bob --email bob@example.com --password s3cretpass
  panel user create --username svc --email svc@example.com --no-login`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(username, email, password, admin, noLogin)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant root administrator rights")
	cmd.Flags().BoolVar(&noLogin, "no-login", false, "Set a random password instead of prompting")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runUserCreate(username, email, password string, admin, noLogin bool) error {
	if password == "" && !noLogin {
		pw, err := promptPassword()
		if err != nil {
			return err
		}
		password = pw
	}

	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := c.users.Create(context.Background(), service.CreateUserInput{
		Username:  username,
		Email:     email,
		Password:  password,
		RootAdmin: admin,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	role := "user"
	if user.RootAdmin {
		role = "root admin"
	}
	fmt.Printf("Created %s %q (id %d)\n", role, user.Username, user.ID)
	return nil
}

// ---------- user list ----------

func newUserListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runUserList(jsonOutput bool) error {
	_, store, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if jsonOutput {
		return printJSON(users)
	}

	if len(users) == 0 {
		fmt.Println("No users. Use 'panel user create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-20s %-30s %-6s\n", "ID", "USERNAME", "EMAIL", "ADMIN")
	fmt.Printf("%-6s %-20s %-30s %-6s\n", "--", "--------", "-----", "-----")
	for _, u := range users {
		admin := "no"
		if u.RootAdmin {
			admin = "yes"
		}
		fmt.Printf("%-6d %-20s %-30s %-6s\n", u.ID, u.Username, u.Email, admin)
	}
	return nil
}

// ---------- user delete ----------

func newUserDeleteCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"rm"},
		Short:   "Delete a user and revoke its daemon keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserDelete(userID)
		},
	}

	cmd.Flags().Int64Var(&userID, "id", 0, "User ID (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runUserDelete(userID int64) error {
	store, c, err := openCore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := c.users.Delete(context.Background(), userID); err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	fmt.Printf("Deleted user %d\n", userID)
	return nil
}
