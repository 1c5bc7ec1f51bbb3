package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/service"
)

func (c *cli) usersCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	list := &cobra.Command{
		Use:   "list [id...]",
		Short: "List users (all of them when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return c.withManager(cmd.Context(), func(m *service.Manager) error {
				us, err := m.GetUsers(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				return c.printUsers(cmd, us)
			})
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Disable an account and expire its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.setActive(cmd, args[0], false)
		},
	}

	activate := &cobra.Command{
		Use:   "activate <id>",
		Short: "Re-enable a disabled account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.setActive(cmd, args[0], true)
		},
	}

	purge := &cobra.Command{
		Use:   "purge <id>...",
		Short: "Delete users and all their sessions",
		Long: `Permanently delete users and every session they own.

WARNING: This action cannot be undone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return c.withManager(cmd.Context(), func(m *service.Manager) error {
				n, err := m.PurgeUsers(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(cmd.OutOrStdout(), map[string]int64{"purged": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d user(s)\n", n)
				return nil
			})
		},
	}

	users.AddCommand(list, deactivate, activate, purge)
	return users
}

func (c *cli) setActive(cmd *cobra.Command, arg string, active bool) error {
	ids, err := parseIDs([]string{arg})
	if err != nil {
		return err
	}
	return c.withManager(cmd.Context(), func(m *service.Manager) error {
		if err := m.SetActive(cmd.Context(), ids[0], active); err != nil {
			return err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %d %s\n", ids[0], state)
		return nil
	})
}

func (c *cli) printUsers(cmd *cobra.Command, users []*model.User) error {
	out := cmd.OutOrStdout()
	if c.jsonOut {
		return c.printJSON(out, map[string]any{"users": users, "count": len(users)})
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tEMAIL\tACTIVE\tLOGIN\tCREATED\tLAST LOGIN")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%s\n",
			u.ID,
			u.Email,
			u.Active,
			loginKinds(u),
			u.Created.UTC().Format(time.RFC3339),
			u.LastLogin.UTC().Format(time.RFC3339),
		)
	}
	return w.Flush()
}

func loginKinds(u *model.User) string {
	switch {
	case u.HasPassword() && u.HasOAuth():
		return "password+" + *u.OAuthService
	case u.HasOAuth():
		return *u.OAuthService
	default:
		return "password"
	}
}
