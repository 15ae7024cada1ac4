package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/hitoshi/portal/internal/client/session"
	"github.com/spf13/cobra"
)

func loginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Print the identity provider login URL",
		Long: `Print the login URL. After signing in, copy the access token
and store it with "portalctl token set".`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			e.manager.Login()
		},
	}
}

func registerCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Print the identity provider registration URL",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			e.manager.Register()
		},
	}
}

func tokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored access token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <access-token>",
		Short: "Store an access token and cache the caller's organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(args[0])
			if err := e.store.Persist(cmd.Context(), raw); err != nil {
				return err
			}
			userID, _ := e.store.Value(session.KeyUserID)
			fmt.Fprintf(e.out, "Stored token for user %s\n", orDash(userID))
			if slug, ok := e.store.Value(session.KeyOrganizationSlug); ok {
				fmt.Fprintf(e.out, "Organization: %s\n", slug)
			}
			return nil
		},
	})

	return cmd
}

func statusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the session, refreshing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.manager.CheckAuthStatus(cmd.Context()) {
				fmt.Fprintln(e.out, "Not logged in")
				return nil
			}
			userID, _ := e.store.Value(session.KeyUserID)
			email, _ := e.store.Value(session.KeyUserEmail)
			slug, _ := e.store.Value(session.KeyOrganizationSlug)

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Status:\tlogged in\n")
			fmt.Fprintf(tw, "User:\t%s\n", orDash(userID))
			fmt.Fprintf(tw, "Email:\t%s\n", orDash(email))
			fmt.Fprintf(tw, "Organization:\t%s\n", orDash(slug))
			return tw.Flush()
		},
	}
}

func logoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Long: `Clear the stored session. The refresh cookie held by the identity
provider is not revoked; sign out there to end the provider session.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			e.manager.Logout()
		},
	}
}

type projectSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	DeploymentURL string `json:"deploymentUrl"`
}

func projectsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Work with projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the caller's projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var projects []projectSummary
			if err := e.client.GetJSON(cmd.Context(), "/api/projects", &projects); err != nil {
				return apiError(err)
			}
			if len(projects) == 0 {
				fmt.Fprintln(e.out, "No projects")
				return nil
			}

			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tURL")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Status, orDash(p.DeploymentURL))
			}
			return tw.Flush()
		},
	})

	return cmd
}

func getCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "GET an API path and print the JSON response",
		Example: `  portalctl get /api/subscription
  portalctl get /api/team`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				return errors.New("path must start with /")
			}

			var body json.RawMessage
			if err := e.client.GetJSON(cmd.Context(), path, &body); err != nil {
				return apiError(err)
			}
			enc := json.NewEncoder(e.out)
			enc.SetIndent("", "  ")
			return enc.Encode(body)
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
