// Command soundstage is the terminal client for the SoundStage backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/erinmikailstaples/soundstage/internal/api"
	"github.com/erinmikailstaples/soundstage/internal/app"
	"github.com/erinmikailstaples/soundstage/internal/backend"
	"github.com/erinmikailstaples/soundstage/internal/config"
	"github.com/erinmikailstaples/soundstage/internal/logging"
	"github.com/erinmikailstaples/soundstage/internal/mcpserver"
	"github.com/erinmikailstaples/soundstage/internal/session"
	"github.com/erinmikailstaples/soundstage/internal/store"
)

var version = "dev"

var (
	cfgPath    string
	backendURL string
	dataDir    string
)

func main() {
	root := &cobra.Command{
		Use:           "soundstage",
		Short:         "Live stream sound effects from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.soundstage/config.yaml)")
	root.PersistentFlags().StringVar(&backendURL, "backend-url", "", "backend base URL")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for local state and logs")

	root.AddCommand(resetCmd(), mcpCmd(), backendCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is what every client command needs: config, a log and the flag store.
type env struct {
	cfg    *config.Config
	log    *logging.Logger
	store  *store.Store
	client *api.Client
	boot   *session.BootState
}

func openEnv(component string) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.Open(cfg.DataDir, component, cfg.SlogLevel())
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.DefaultDBPath(cfg.DataDir))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("open local state: %w", err)
	}
	flags, err := st.Flags()
	if err != nil {
		st.Close()
		log.Close()
		return nil, fmt.Errorf("read local state: %w", err)
	}
	log.Info("starting", "version", version, "backend", cfg.BackendURL,
		"consent_given", flags.ConsentGiven, "onboarding_complete", flags.OnboardingComplete)

	client := api.New(api.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
		Retry:   cfg.RetryPolicy(),
		Logger:  log.Logger,
	})
	return &env{
		cfg:    cfg,
		log:    log,
		store:  st,
		client: client,
		boot:   session.NewBootState(flags, st),
	}, nil
}

func (e *env) Close() {
	e.store.Close()
	e.log.Close()
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := openEnv("tui")
	if err != nil {
		return err
	}
	defer e.Close()

	m := app.New(app.Options{
		Backend:      e.client,
		Boot:         e.boot,
		Logger:       e.log.Logger,
		PollInterval: e.cfg.StatusPollInterval,
		BackendURL:   e.cfg.BackendURL,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget consent and onboarding so the first-run flow shows again",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(store.DefaultDBPath(cfg.DataDir))
			if err != nil {
				return err
			}
			defer st.Close()
			return resetState(cmd.OutOrStdout(), st)
		},
	}
}

// resetState clears both boot flags and reports when consent had been given.
func resetState(out io.Writer, st *store.Store) error {
	given, at, err := st.Flag(store.FlagConsentGiven)
	if err != nil {
		return err
	}
	if err := st.Reset(); err != nil {
		return err
	}
	if given {
		fmt.Fprintf(out, "Cleared consent given %s.\n", at.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out, "Local state reset.")
	return nil
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the control panel as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv("mcp")
			if err != nil {
				return err
			}
			defer e.Close()

			panel := session.NewPanel(e.client, session.WithPanelLogger(e.log.Logger))
			srv, err := mcpserver.New(panel, e.boot, version, e.log.Logger)
			if err != nil {
				return fmt.Errorf("%w: run soundstage once to finish setup", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}

func backendCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run an in-memory development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logging.Open(cfg.DataDir, "backend", cfg.SlogLevel())
			if err != nil {
				return err
			}
			defer log.Close()

			gin.SetMode(gin.ReleaseMode)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Backend listening on http://%s\n", addr)
			return backend.New(log.Logger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	return cmd
}
