// Command truthguard is the command-line client for the TruthGuard fake
// news checker: analyze article text, rate results, and browse headlines.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"truthguard/internal/app"
	"truthguard/internal/config"
	"truthguard/internal/util"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "truthguard",
		Short:         "Check article credibility from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", config.ConfigPath, "path to config file")

	root.AddCommand(
		newLoginCmd(&cfgPath),
		newSignupCmd(&cfgPath),
		newLogoutCmd(&cfgPath),
		newWhoamiCmd(&cfgPath),
		newRefreshCmd(&cfgPath),
		newResetPasswordCmd(&cfgPath),
		newAnalyzeCmd(&cfgPath),
		newRateCmd(&cfgPath),
		newNewsCmd(&cfgPath),
		newHistoryCmd(&cfgPath),
	)
	return root
}

// buildApp loads config and assembles the client. notify receives the
// delayed feedback prompt; nil disables it.
func buildApp(cfgPath string, notify func(analysisID string)) (*app.App, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	util.InitLogger(cfg.LogLevel)
	return app.New(app.Options{Config: cfg, PromptNotify: notify})
}
