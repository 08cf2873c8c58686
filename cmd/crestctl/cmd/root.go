package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pilab-dev/shadow-crest/cache"
	"github.com/pilab-dev/shadow-crest/config"
	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const appName = "crestctl"

var (
	cfgFile      string
	outputFormat string
	verbose      bool

	appLogger log.Logger
	appConfig *config.ServerConfig
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "crestctl talks to the CCP SSO and the CREST API",
	Long: `A command-line companion of the login server. It exchanges and refreshes
tokens, verifies them and walks the CREST resource graph.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		appLogger = log.NewWriterAdapter(cmd.ErrOrStderr(), log.ParseLevel(level))

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if appLogger != nil {
			appLogger.Error(context.Background(), "crestctl failed", err)
		} else {
			fmt.Fprintln(os.Stderr, "crestctl failed:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.shadow-crest/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")

	rootCmd.AddCommand(tokenCmd, verifyCmd, walkCmd, locationCmd)
}

func ssoConfig() sso.Config {
	return sso.Config{
		BaseURL:   appConfig.SSOURL,
		ClientID:  appConfig.ClientID,
		SecretKey: appConfig.SecretKey,
		Timeout:   appConfig.CrestTimeout,
		UserAgent: appConfig.UserAgent,
	}
}

func newWalker() *crest.Walker {
	return crest.NewWalker(crest.Config{
		BaseURL:   appConfig.CrestURL,
		Timeout:   appConfig.CrestTimeout,
		UserAgent: appConfig.UserAgent,
	}, webclient.New(nil), appLogger.Named("crest"))
}

func newLocationService() *crest.LocationService {
	return crest.NewLocationService(newWalker(), cache.NewMemoryStore(), appLogger.Named("location"))
}

func printResult(w io.Writer, v any) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
