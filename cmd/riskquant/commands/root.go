package commands

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"riskquant/internal/config"
	"riskquant/internal/logging"
	"riskquant/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
	logSink io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "riskquant",
	Short: "riskquant quantifies a project risk register",
	Long: `riskquant runs Monte Carlo cost and schedule simulation over a risk register, scores and ranks
risks, projects their scores forward, computes the Escalation Instability Index and optimises
mitigation spend. With no subcommand it serves the engine as MCP tools over stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logSink, err = logging.Init(logging.Options{Verbose: verbose})
		if err != nil {
			return err
		}

		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("history", cfg.HistoryBackend).
			Msg("riskquant starting")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			_ = logSink.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the engine as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

func runMCP(ctx context.Context) error {
	env, err := newEnvironment(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	server, err := mcp.NewServer(env.Service, Version, cfg.EnableMermaidCharts)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(mcpCmd, serveCmd, analyzeCmd, optimiseCmd)
}
