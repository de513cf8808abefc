package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newLeadsCommand() *cobra.Command {
	leads := &cobra.Command{
		Use:   "leads",
		Short: "Review partnership inquiries and project submissions",
	}
	leads.AddCommand(newPartnerLeadsCommand(), newProjectsCommand())
	return leads
}

func newPartnerLeadsCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "partners",
		Short: "List partnership inquiries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			list, err := envFrom(cmd.Context()).Leads.ListPartnerLeads(ctx, status)
			if err != nil {
				return fmt.Errorf("failed to list leads: %w", err)
			}
			if len(list) == 0 {
				pterm.Info.Println("No partnership inquiries.")
				return nil
			}
			table := pterm.TableData{{"ID", "COMPANY", "CONTACT", "EMAIL", "ACTOR", "STATUS", "RECEIVED"}}
			for _, l := range list {
				table = append(table, []string{l.ID, l.Company, l.FirstName + " " + l.LastName, l.Email, l.ActorType, l.Status, l.CreatedAt.Format("2006-01-02")})
			}
			out, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by lead status")
	return cmd
}

func newProjectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List project submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			list, err := envFrom(cmd.Context()).Leads.ListProjects(ctx, "")
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if len(list) == 0 {
				pterm.Info.Println("No project submissions.")
				return nil
			}
			table := pterm.TableData{{"ID", "USER_ID", "TYPE", "BUDGET", "TIMELINE", "STATUS"}}
			for _, p := range list {
				table = append(table, []string{p.ID, p.UserID, p.ProjectType, p.BudgetRange, p.Timeline, p.Status})
			}
			out, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
