package main

import (
	"errors"
	"fmt"
	"net"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/app"
	"github.com/hairguard/hairguard/internal/auth"
	"github.com/hairguard/hairguard/internal/checkin"
	"github.com/hairguard/hairguard/internal/dashboard"
	"github.com/hairguard/hairguard/internal/foodsniper"
	"github.com/hairguard/hairguard/internal/mentalshield"
	"github.com/hairguard/hairguard/internal/tui"
	"github.com/hairguard/hairguard/internal/ui"
)

func (c *cli) loginCmd() *cobra.Command {
	var creds auth.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()

			user, err := client.Provider.SignIn(cmd.Context(), creds)
			if err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.Label(), user.UID)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	cmd.Flags().StringVar(&creds.DisplayName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Provider.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("sign out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer client.Close()
			user := client.Guard.User()
			if user == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Label(), user.UID)
			return nil
		},
	}
}

func (c *cli) checkinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkin <photo>",
		Short: "Upload a scalp photo and analyze it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			file, err := checkin.ReadFile(args[0])
			if err != nil {
				return err
			}
			flow := client.Flows().CheckIn
			defer flow.Close()
			if err := flow.Select(file); err != nil {
				return err
			}
			if err := flow.Submit(cmd.Context()); err != nil {
				return flowError(flow.State().Message, err)
			}
			st := flow.State()
			fmt.Fprintf(cmd.OutOrStdout(), "photo %s\n%s\n", st.PhotoID, checkin.FormatResult(st.Result))
			return nil
		},
	}
}

func (c *cli) pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List photos whose analysis has not completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			photos, err := client.Flows().CheckIn.Pending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(photos) == 0 {
				fmt.Fprintln(out, "No pending photos")
				return nil
			}
			for _, p := range photos {
				fmt.Fprintf(out, "%s  %s  %s", p.ID, p.Status, p.CapturedAt)
				if p.Error != "" {
					fmt.Fprintf(out, "  %s", p.Error)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func (c *cli) reanalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reanalyze <photoId>",
		Short: "Re-run the analysis of a recorded photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			flow := client.Flows().CheckIn
			if err := flow.Reanalyze(cmd.Context(), args[0]); err != nil {
				return flowError(flow.State().Message, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), checkin.FormatResult(flow.State().Result))
			return nil
		},
	}
}

func (c *cli) dashboardCmd() *cobra.Command {
	var newest bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the density index trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			opts := []dashboard.SeriesOption{dashboard.WithLogger(c.logger)}
			if newest {
				opts = append(opts, dashboard.WithWindow(dashboard.WindowNewest))
			}
			series := dashboard.NewSeries(client.Guard, client.Store, opts...)
			if err := series.Load(cmd.Context()); err != nil {
				return err
			}
			printSeries(cmd, series.State())
			return nil
		},
	}
	cmd.Flags().BoolVar(&newest, "newest", false, "show the newest points instead of the oldest")
	return cmd
}

func printSeries(cmd *cobra.Command, st dashboard.SeriesState) {
	out := cmd.OutOrStdout()
	switch st.View() {
	case dashboard.ViewEmpty:
		fmt.Fprintln(out, "No analysis results yet")
		return
	case dashboard.ViewError:
		fmt.Fprintln(out, st.Message)
		return
	}

	values := make([]float64, len(st.Points))
	for i, p := range st.Points {
		values[i] = p.DensityIndex
		fmt.Fprintf(out, "%s  %.3f\n", p.Date.Local().Format("2006/01/02 15:04"), p.DensityIndex)
	}
	line := dashboard.DefaultSparkline(st.Points)
	if line != nil {
		fmt.Fprintln(out, ui.Sparkline(values))
	}

	sum := dashboard.Summarize(st.Points)
	fmt.Fprintf(out, "latest %.3f", sum.Latest.DensityIndex)
	if sum.HasDelta {
		fmt.Fprintf(out, "  delta %s", ui.Delta(sum.Delta))
	}
	fmt.Fprintln(out)
	if line != nil {
		fmt.Fprintf(out, "polyline %s\n", line)
	}
}

func (c *cli) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Generate the weekly report",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			reports := client.Flows().Reports
			if err := reports.Generate(cmd.Context()); err != nil {
				return flowError(reports.State().Message, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), dashboard.FormatReport(reports.State().Report))
			return nil
		},
	}
}

func (c *cli) foodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "food [message]",
		Short: "Ask the food sniper what to buy on the way home",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			message := strings.Join(args, " ")
			if message == "" {
				message = foodsniper.DefaultMessage
			}
			flow := client.Flows().Food
			if err := flow.AcquireLocation(cmd.Context()); err != nil {
				c.logger.Debug("no location", zap.Error(err))
				fmt.Fprintln(cmd.ErrOrStderr(), flow.State().Message)
			}
			if err := flow.Recommend(cmd.Context(), message); err != nil {
				return flowError(flow.State().Message, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), foodsniper.FormatResult(flow.State().Result))
			return nil
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recent food sniper requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			flow := client.Flows().Food
			if err := flow.LoadHistory(cmd.Context()); err != nil {
				return flowError(flow.State().HistoryMessage, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), foodsniper.FormatHistory(flow.State().History))
			return nil
		},
	}
}

func (c *cli) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the mental shield agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.openClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer client.Close()

			message := strings.Join(args, " ")
			if message == "" {
				message = mentalshield.DefaultMessage
			}
			flow := client.Flows().Chat
			if err := flow.Send(cmd.Context(), message); err != nil {
				return flowError(flow.State().Message, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), mentalshield.FormatResult(flow.State().Result))
			return nil
		},
	}
}

func (c *cli) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.OpenClient(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			flows := client.Flows()
			defer flows.CheckIn.Close()
			model := tui.New(cmd.Context(), client.Guard, tui.Flows(*flows))
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				c.cfg.Server.Port = port
			}
			backend, err := app.OpenBackend(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			return backend.Server().Start(cmd.Context(), net.JoinHostPort("", c.cfg.Server.Port))
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides config)")
	return cmd
}

// flowError prefers the message a flow shows its user over the raw error.
func flowError(message string, err error) error {
	if message == "" {
		return err
	}
	return errors.New(message)
}
