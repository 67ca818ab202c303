package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/app"
	"github.com/hairguard/hairguard/internal/config"
	"github.com/hairguard/hairguard/internal/logging"
	"github.com/hairguard/hairguard/internal/session"
)

var errSignedOut = errors.New("not signed in; run `hairguard login` first")

// cli holds the global flags and what PersistentPreRunE builds from them.
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "hairguard",
		Short: "HairGuard - scalp check-ins, trends and lifestyle agents",
		Long: `HairGuard records scalp photos, tracks a hair density index over time and
asks the agent API for weekly reports, food suggestions and support chats.

Run "hairguard tui" for the interactive interface.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			// the TUI owns the terminal; keep logs quiet unless asked
			if cmd.Name() == "tui" && !c.verbose {
				c.logger = zap.NewNop()
				return nil
			}
			c.logger, err = logging.New(c.verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", config.GetConfigPath(), "path to configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.loginCmd(), c.logoutCmd(), c.whoamiCmd(),
		c.checkinCmd(), c.pendingCmd(), c.reanalyzeCmd(),
		c.dashboardCmd(), c.reportCmd(),
		c.foodCmd(), c.historyCmd(),
		c.chatCmd(),
		c.tuiCmd(),
		c.serveCmd(),
	)
	return root
}

// openClient opens the client side and waits for the session to resolve.
// With requireUser it fails unless someone is signed in.
func (c *cli) openClient(ctx context.Context, requireUser bool) (*app.Client, error) {
	client, err := app.OpenClient(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	state, err := client.Guard.Wait(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if requireUser && state.Decide() != session.Allow {
		client.Close()
		return nil, errSignedOut
	}
	return client, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
