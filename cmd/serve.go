package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the churn prediction HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScoring(ctx, "serve")
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sessions := session.NewManager(cfg.Session.MaxSessions, cfg.Session.TTL())
		api := newAPIServer(env, st, sessions, serverOptions{
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			MaxUploadMB:     cfg.Server.MaxUploadMB,
			LoginRatePerMin: cfg.Server.LoginRatePerMin,
			SecureCookies:   cfg.Server.SecureCookies,
			TrustProxy:      cfg.Server.TrustProxy,
		})

		return startServer(ctx, buildMux(api), resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
