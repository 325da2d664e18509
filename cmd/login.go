package cmd

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/config"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/store"
)

var errNoCode = errors.New("no authorization code entered")

func newLoginCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to the calendar from the terminal",
		Long: `Sign in with the PKCE authorization code flow.

The command prints the consent URL of the identity provider. After granting
access the browser is sent to the redirect URL; paste either the whole URL
from the address bar or just the value of its code parameter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			authSvc, err := newAuthService(cmd.Context(), cfg, nil, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = authSvc.Close() }()

			account, err := runLogin(cmd.Context(), authSvc, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", accountLabel(account))
			return nil
		},
	}
}

// runLogin performs the interactive sign-in using in and out
func runLogin(ctx context.Context, authSvc *auth.Service, in io.Reader, out io.Writer) (auth.Account, error) {
	state := uuid.NewString()
	authURL, verifier, err := authSvc.AuthCodeURL(state)
	if err != nil {
		return auth.Account{}, err
	}

	fmt.Fprintf(out, "Open this URL in your browser and grant calendar access:\n\n%s\n\n", authURL)
	fmt.Fprint(out, "Paste the redirect URL or the authorization code: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return auth.Account{}, fmt.Errorf("failed to read authorization code: %w", err)
		}
		return auth.Account{}, errNoCode
	}
	code, err := extractCode(scanner.Text(), state)
	if err != nil {
		return auth.Account{}, err
	}

	return authSvc.Exchange(ctx, code, verifier)
}

// extractCode returns the authorization code from input, which is either a
// bare code or the redirect URL. A URL must carry the expected state.
func extractCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errNoCode
	}
	if !strings.Contains(input, "://") && !strings.HasPrefix(input, "/") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: provider returned %s", auth.ErrInteractionRequired, e)
	}
	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
		return "", fmt.Errorf("redirect URL does not belong to this sign-in (state mismatch)")
	}
	code := q.Get("code")
	if code == "" {
		return "", errNoCode
	}
	return code, nil
}

func accountLabel(a auth.Account) string {
	switch {
	case a.Name != "" && a.Email != "":
		return fmt.Sprintf("%s <%s>", a.Name, a.Email)
	case a.Email != "":
		return a.Email
	default:
		return a.ID
	}
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token of an account",
		Long: `Remove the stored token of an account and purge its cached events.
Without --account the current account is signed out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			authSvc, err := newAuthService(ctx, cfg, nil, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = authSvc.Close() }()

			id := strings.ToLower(strings.TrimSpace(account))
			if id == "" {
				current, err := authSvc.CurrentAccount(ctx)
				if err != nil {
					return fmt.Errorf("no account to sign out: %w", err)
				}
				id = current.ID
			}
			if err := authSvc.Logout(ctx, id); err != nil {
				return err
			}
			if err := purgeCache(ctx, cfg, id); err != nil {
				slog.Warn("failed to purge cached events", logging.Err(err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account (e-mail) to sign out. Defaults to the current account.")
	return cmd
}

// purgeCache drops the cached events of account when an event cache is configured
func purgeCache(ctx context.Context, cfg config.Config, account string) error {
	if cfg.Storage.CachePath == "" {
		return nil
	}
	cache, err := store.Open(ctx, cfg.Storage.CachePath)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()
	return cache.Purge(ctx, account)
}

func newAccountsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the signed-in accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			authSvc, err := newAuthService(ctx, cfg, nil, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = authSvc.Close() }()

			return printAccounts(ctx, authSvc, cmd.OutOrStdout())
		},
	}
}

// printAccounts lists the accounts, marking the current one with '*'
func printAccounts(ctx context.Context, authSvc *auth.Service, out io.Writer) error {
	accounts, err := authSvc.Accounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No accounts signed in. Run 'calview login'.")
		return nil
	}

	var currentID string
	if current, err := authSvc.CurrentAccount(ctx); err == nil {
		currentID = current.ID
	}
	for _, a := range accounts {
		marker := " "
		if a.ID == currentID {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, accountLabel(a))
	}
	return nil
}
