package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/m3connect/portal/internal/export"
	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
)

const commandTimeout = 30 * time.Second

func newUsersCommand() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Moderate member accounts",
	}
	users.AddCommand(
		newUsersListCommand(),
		newModerateCommand("verify", "Mark a member as verified", nil, ptr(models.StatusVerified)),
		newModerateCommand("reject", "Mark a member as rejected", nil, ptr(models.StatusRejected)),
		newSetRoleCommand(),
		newUsersExportCommand(),
	)
	return users
}

type filterFlags struct {
	query  string
	role   string
	status string
	limit  int
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.query, "q", "", "Match name, e-mail or organization")
	cmd.Flags().StringVar(&f.role, "role", "", "Filter by role (user, marina, partner, admin)")
	cmd.Flags().StringVar(&f.status, "status", "", "Filter by status (pending, verified, rejected)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Maximum number of rows")
}

func (f *filterFlags) filter() (storage.ProfileFilter, error) {
	out := storage.ProfileFilter{Query: f.query, Limit: f.limit}
	if f.role != "" {
		role, ok := models.ParseRole(f.role)
		if !ok {
			return out, fmt.Errorf("unknown role %q", f.role)
		}
		out.Role = &role
	}
	if f.status != "" {
		status, ok := models.ParseStatus(f.status)
		if !ok {
			return out, fmt.Errorf("unknown status %q", f.status)
		}
		out.Status = &status
	}
	return out, nil
}

func newUsersListCommand() *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List member accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			list, err := envFrom(cmd.Context()).Profiles.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			if len(list) == 0 {
				pterm.Info.Println("No matching users.")
				return nil
			}
			return renderUsers(cmd.OutOrStdout(), list)
		},
	}
	flags.bind(cmd)
	return cmd
}

func renderUsers(w io.Writer, list []models.Profile) error {
	table := pterm.TableData{{"USER_ID", "NAME", "EMAIL", "ORGANIZATION", "ROLE", "STATUS", "CREATED"}}
	for _, p := range list {
		table = append(table, []string{
			p.UserID,
			p.FullName(),
			p.Email,
			p.OrganizationName,
			string(p.Role),
			string(p.Status),
			p.CreatedAt.Format("2006-01-02"),
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func newModerateCommand(use, short string, role *models.Role, status *models.Status) *cobra.Command {
	return &cobra.Command{
		Use:   use + " USER_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return moderate(cmd, args[0], models.Moderation{Role: role, Status: status})
		},
	}
}

func newSetRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role USER_ID ROLE",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := models.ParseRole(args[1])
			if !ok {
				return fmt.Errorf("unknown role %q", args[1])
			}
			return moderate(cmd, args[0], models.Moderation{Role: &role})
		},
	}
}

func moderate(cmd *cobra.Command, userID string, change models.Moderation) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	updated, err := envFrom(cmd.Context()).Profiles.Moderate(ctx, userID, change)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", userID, err)
	}
	pterm.Success.Printf("%s is now %s / %s\n", updated.Email, updated.Role, updated.Status)
	return nil
}

func newUsersExportCommand() *cobra.Command {
	var (
		flags filterFlags
		path  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export member accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			list, err := envFrom(cmd.Context()).Profiles.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			if path == "" || path == "-" {
				return export.WriteUsersCSV(cmd.OutOrStdout(), list)
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := export.WriteUsersCSV(f, list); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			pterm.Success.Printf("Exported %d users to %s\n", len(list), path)
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&path, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func ptr[T any](v T) *T {
	return &v
}
