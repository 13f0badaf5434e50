package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/velosix/rednote-collector/internal/auth"
	"github.com/velosix/rednote-collector/internal/browser"
	"github.com/velosix/rednote-collector/internal/crawler"
	"github.com/velosix/rednote-collector/internal/identity"
	"github.com/velosix/rednote-collector/internal/observability"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and persist the session for later runs",
	Long: `Login opens the site in a visible browser window and waits for you
to scan the QR code. Once the logged-in marker appears, the session
cookies and local storage are saved so subsequent crawl runs start
authenticated. Run this once per expiry cycle instead of scanning at
the start of every crawl.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	defer observability.Sync()
	log := observability.GetLogger()

	// a window is required: nobody can scan a headless QR code
	cfg.Browser.Headless = false

	ctx, stop := signalContext()
	defer stop()

	id := identity.NewProvider().Generate()
	session, err := browser.Open(ctx, cfg.Browser, id, log)
	if err != nil {
		return err
	}
	defer session.Close()

	controller := auth.NewController(
		crawler.AuthClient(session, cfg.Browser.StatePath),
		cfg.Site, cfg.Auth, log)
	state, err := controller.EnsureAuthenticated(ctx)
	if err != nil {
		return err
	}
	log.Info("login complete",
		zap.String("state", state.String()),
		zap.String("state_path", cfg.Browser.StatePath))
	return nil
}
