package cmd

import (
	"fmt"

	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange or refresh SSO tokens",
}

var tokenExchangeCmd = &cobra.Command{
	Use:   "exchange <authorization-code>",
	Short: "Exchange an authorization code for an access/refresh token pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sso.NewTokenService(ssoConfig(), webclient.New(nil), appLogger.Named("sso"))
		pair, err := svc.ExchangeAuthorizationCode(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("exchange failed: %w", err)
		}
		return printResult(cmd.OutOrStdout(), pair)
	},
}

var tokenRefreshCmd = &cobra.Command{
	Use:   "refresh <refresh-token>",
	Short: "Obtain a new access token with a refresh token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sso.NewTokenService(ssoConfig(), webclient.New(nil), appLogger.Named("sso"))
		pair, err := svc.RefreshAccessToken(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		return printResult(cmd.OutOrStdout(), pair)
	},
}

var authorizeURLCmd = &cobra.Command{
	Use:   "authorize-url <state>",
	Short: "Print the SSO authorize URL for a state value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := ssoConfig()
		cfg.RedirectURL = appConfig.AppURL + "/sso/callbackAuthorization"
		u, err := cfg.AuthCodeURL(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
		return err
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <access-token>",
	Short: "Resolve an access token to its character",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verifier := sso.NewVerifier(ssoConfig(), webclient.New(nil), appLogger.Named("sso"))
		identity, err := verifier.VerifyIdentity(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}
		return printResult(cmd.OutOrStdout(), identity)
	},
}

func init() {
	tokenCmd.AddCommand(tokenExchangeCmd, tokenRefreshCmd, authorizeURLCmd)
}
