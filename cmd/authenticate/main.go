package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vatsimnerd/socialauth"
	"github.com/vatsimnerd/socialauth/authfactory"
	"github.com/vatsimnerd/socialauth/config"
	"github.com/vatsimnerd/socialauth/oauth1"
	"github.com/vatsimnerd/socialauth/oauth2"
)

var (
	debug      bool
	configPath string
	callback   string
	accessType string
	signURL    string
)

func main() {
	root := &cobra.Command{
		Use:          "authenticate",
		Short:        "Obtain credentials for the social network API",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug mode")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file, SOCIALAUTH_* env vars override it")
	root.PersistentFlags().StringVar(&signURL, "url", "https://api.twitter.com/1.1/account/verify_credentials.json", "URL to build a sample Authorization header for")

	oauth1Cmd := &cobra.Command{
		Use:   "oauth1",
		Short: "Run the three-legged PIN flow and print the access token",
		RunE:  runOAuth1,
	}
	oauth1Cmd.Flags().StringVar(&callback, "callback", "oob", "oauth_callback sent with the request token")
	oauth1Cmd.Flags().StringVar(&accessType, "access-type", "", "x_auth_access_type (read or write)")

	oauth2Cmd := &cobra.Command{
		Use:   "oauth2",
		Short: "Fetch an application-only bearer token",
		RunE:  runOAuth2,
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Invalidate the configured bearer token",
		RunE:  runInvalidate,
	}

	root.AddCommand(oauth1Cmd, oauth2Cmd, invalidateCmd)
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

func loadAuthorization(applicationOnly bool) (socialauth.Authorization, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	cfg.ApplicationOnlyAuthEnabled = applicationOnly
	if !cfg.HasConsumer() {
		return nil, fmt.Errorf("consumer key and secret are required")
	}
	return authfactory.New(cfg)
}

func runOAuth1(cmd *cobra.Command, args []string) error {
	auth, err := loadAuthorization(false)
	if err != nil {
		return err
	}
	a := auth.(*oauth1.Authorization)
	ctx := cmd.Context()

	if !a.IsEnabled() {
		opts := []socialauth.RequestTokenOption{socialauth.WithCallbackURL(callback)}
		if accessType != "" {
			opts = append(opts, socialauth.WithAccessType(accessType))
		}
		rt, err := a.OAuthRequestToken(ctx, opts...)
		if err != nil {
			return fmt.Errorf("error requesting request token: %w", err)
		}

		fmt.Printf("Follow the link %s and enter the PIN shown: ", rt.AuthorizationURL())
		pin, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("error reading PIN: %w", err)
		}

		at, err := a.OAuthAccessToken(ctx, socialauth.WithVerifier(strings.TrimSpace(pin)))
		if err != nil {
			return fmt.Errorf("error requesting access token: %w", err)
		}
		fmt.Println("Token acquired successfully.")
		fmt.Printf("  user id:             %d\n", at.UserID())
		fmt.Printf("  screen name:         %s\n", at.ScreenName())
		fmt.Printf("  access token:        %s\n", at.Token())
		fmt.Printf("  access token secret: %s\n", at.TokenSecret())
	}

	printHeader(a)
	return nil
}

func runOAuth2(cmd *cobra.Command, args []string) error {
	auth, err := loadAuthorization(true)
	if err != nil {
		return err
	}
	a := auth.(*oauth2.Authorization)
	if !a.IsEnabled() {
		t, err := a.OAuth2Token(cmd.Context())
		if err != nil {
			return fmt.Errorf("error requesting bearer token: %w", err)
		}
		fmt.Println("Token acquired successfully.")
		fmt.Printf("  token type:   %s\n", t.TokenType())
		fmt.Printf("  access token: %s\n", t.AccessToken())
	}
	printHeader(a)
	return nil
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	auth, err := loadAuthorization(true)
	if err != nil {
		return err
	}
	a := auth.(*oauth2.Authorization)
	if !a.IsEnabled() {
		return fmt.Errorf("oauth2_token_type and oauth2_access_token must be configured")
	}
	if err := a.InvalidateOAuth2Token(cmd.Context()); err != nil {
		return fmt.Errorf("error invalidating bearer token: %w", err)
	}
	fmt.Println("Token invalidated.")
	return nil
}

func printHeader(a socialauth.Authorization) {
	h := a.AuthorizationHeader(&socialauth.Request{Method: "GET", URL: signURL})
	fmt.Printf("Use the following header to authenticate:\n  Authorization: %s\n", h)
}
