package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/authcore/internal/service"
)

func (c *cli) sessionsCmd() *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and expire sessions",
	}

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's sessions, expired ones included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return c.withManager(cmd.Context(), func(m *service.Manager) error {
				ss, err := m.Sessions(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if c.jsonOut {
					// Tokens are credentials; only ids and times are printed.
					rows := make([]map[string]any, 0, len(ss))
					for _, s := range ss {
						rows = append(rows, map[string]any{
							"id":      s.ID,
							"created": s.Created,
							"expires": s.Expires,
							"active":  m.SessionLifecycle().IsActive(s),
						})
					}
					return c.printJSON(out, map[string]any{"sessions": rows, "count": len(rows)})
				}
				if len(ss) == 0 {
					fmt.Fprintln(out, "No sessions found")
					return nil
				}
				w := newTable(out)
				fmt.Fprintln(w, "ID\tACTIVE\tCREATED\tLAST ACCESS\tEXPIRES")
				for _, s := range ss {
					fmt.Fprintf(w, "%d\t%t\t%s\t%s\t%s\n",
						s.ID,
						m.SessionLifecycle().IsActive(s),
						s.Created.UTC().Format(time.RFC3339),
						s.LastAccess.UTC().Format(time.RFC3339),
						s.Expires.UTC().Format(time.RFC3339),
					)
				}
				return w.Flush()
			})
		},
	}

	expire := &cobra.Command{
		Use:   "expire <user-id>",
		Short: "Log a user out everywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return c.withManager(cmd.Context(), func(m *service.Manager) error {
				n, err := m.ExpireSessions(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(cmd.OutOrStdout(), map[string]int64{"expired": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Expired %d session(s) of user %d\n", n, ids[0])
				return nil
			})
		},
	}

	sessions.AddCommand(list, expire)
	return sessions
}
