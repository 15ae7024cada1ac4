package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hitoshi/portal/internal/client/apiclient"
	"github.com/hitoshi/portal/internal/client/authstate"
	"github.com/hitoshi/portal/internal/client/session"
	"github.com/hitoshi/portal/internal/logger"
	"github.com/spf13/cobra"
)

// options はフラグと環境変数から決まるCLI設定。
type options struct {
	apiURL      string
	authURL     string
	loginURL    string
	registerURL string
	returnTo    string
	sessionFile string
	logLevel    string
	timeout     time.Duration
}

// env はコマンド実行時に組み立てるクライアント一式。
type env struct {
	out     io.Writer
	store   *session.Store
	client  *apiclient.Client
	manager *authstate.Manager
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".portalctl-session.json"
	}
	return filepath.Join(dir, "portalctl", "session.json")
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	e := &env{out: out}

	rootCmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Command-line client for the portal API",
		Long: `portalctl talks to the portal API with the session stored on disk.

Expired access tokens are refreshed once per request through the identity
provider; when the refresh fails the session is cleared and the login URL
is printed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.init(opts, errOut)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", envOr("PORTAL_API_URL", "http://localhost:8080"), "portal API base URL")
	flags.StringVar(&opts.authURL, "auth-url", envOr("PORTAL_AUTH_URL", "http://localhost:9000"), "identity provider base URL")
	flags.StringVar(&opts.loginURL, "login-url", os.Getenv("PORTAL_LOGIN_URL"), "login page URL (default <auth-url>/login)")
	flags.StringVar(&opts.registerURL, "register-url", "", "register page URL (default <auth-url>/register)")
	flags.StringVar(&opts.returnTo, "return-to", "", "URL to return to after login (default <api-url>)")
	flags.StringVar(&opts.sessionFile, "session-file", envOr("PORTAL_SESSION_FILE", defaultSessionFile()), "session file path")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP timeout")

	rootCmd.AddCommand(
		loginCmd(e),
		registerCmd(e),
		tokenCmd(e),
		statusCmd(e),
		logoutCmd(e),
		projectsCmd(e),
		getCmd(e),
	)

	return rootCmd
}

// init はセッションストア、APIクライアント、認証状態マネージャーを組み立てる。
func (e *env) init(opts *options, errOut io.Writer) error {
	authBase := strings.TrimRight(opts.authURL, "/")
	if opts.loginURL == "" {
		opts.loginURL = authBase + "/login"
	}
	if opts.registerURL == "" {
		opts.registerURL = authBase + "/register"
	}
	if opts.returnTo == "" {
		opts.returnTo = opts.apiURL
	}

	log := logger.Setup(errOut, "portalctl", logger.ParseLevel(opts.logLevel))

	storage, err := session.OpenFileStorage(opts.sessionFile)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	e.store = session.NewStore(storage, log)

	nav := apiclient.NavigatorFunc(func(target string) error {
		_, err := fmt.Fprintf(e.out, "Open this URL in your browser:\n  %s\n", target)
		return err
	})

	httpClient, err := apiclient.NewHTTPClient(opts.timeout)
	if err != nil {
		return err
	}
	e.client, err = apiclient.New(apiclient.Config{
		BaseURL:    opts.apiURL,
		RefreshURL: authBase + "/auth/refresh-token",
		LoginURL:   opts.loginURL,
		ReturnTo:   opts.returnTo,
	}, e.store, nav, httpClient, log)
	if err != nil {
		return err
	}
	e.store.SetMembershipFetcher(e.client)

	e.manager = authstate.NewManager(authstate.Config{
		LoginURL:    opts.loginURL,
		RegisterURL: opts.registerURL,
		ReturnTo:    opts.returnTo,
	}, e.store, e.client, nav, log)
	return nil
}

// apiError はAPI呼び出しのエラーを利用者向けの文言にする。
func apiError(err error) error {
	if errors.Is(err, apiclient.ErrSessionExpired) {
		return errors.New("session expired, log in again")
	}
	var se *apiclient.StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return fmt.Errorf("%s (HTTP %d)", se.Message, se.StatusCode)
		}
		return fmt.Errorf("HTTP %d", se.StatusCode)
	}
	return err
}
