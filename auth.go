package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/filecrate/filecrate-go/internal/state"
)

// promptPassword reads the password from stdin. Interactive users get a
// prompt on stderr; piped input is read verbatim (trailing newline stripped).
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}

	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password must not be empty")
	}

	return pw, nil
}

// newRegisterCmd creates a new account. Registration does not log in by
// itself unless --login is given.
func newRegisterCmd() *cobra.Command {
	var alsoLogin bool

	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			email := args[0]

			password, err := promptPassword()
			if err != nil {
				return err
			}

			if err := a.mgr.Register(cmd.Context(), email, password); err != nil {
				return describeScopeError(a.store, state.ScopeAuth, err)
			}

			statusf("Account created for %s\n", email)

			if !alsoLogin {
				return nil
			}

			if err := a.mgr.Login(cmd.Context(), email, password); err != nil {
				return describeScopeError(a.store, state.ScopeAuth, err)
			}

			statusf("Logged in as %s\n", a.mgr.Session().Email)

			return nil
		},
	}

	cmd.Flags().BoolVar(&alsoLogin, "login", false, "log in immediately after registering")

	return cmd
}

// newLoginCmd authenticates and runs the initial full synchronization.
func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Log in to the storage service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			password, err := promptPassword()
			if err != nil {
				return err
			}

			if err := a.mgr.Login(cmd.Context(), args[0], password); err != nil {
				return describeScopeError(a.store, state.ScopeAuth, err)
			}

			sess := a.mgr.Session()
			statusf("Logged in as %s (%d files, %s used)\n",
				sess.Email, a.store.Stats().TotalFiles, formatSize(a.store.Stats().TotalSizeBytes))

			return nil
		},
	}
}

// newLogoutCmd ends the session and wipes all local state. Logging out twice
// is fine.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear local session state",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.mgr.Logout(); err != nil {
				return err
			}

			statusf("Logged out\n")

			return nil
		},
	}
}

// newWhoamiCmd validates the stored token and prints the profile.
func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.mgr.EnsureValidated(cmd.Context()); err != nil {
				return errNotLoggedIn(err)
			}

			sess := a.mgr.Session()

			if flagJSON {
				return printJSON(map[string]any{
					"email":   sess.Email,
					"user_id": sess.UserID,
				})
			}

			fmt.Printf("%s (user %d)\n", sess.Email, sess.UserID)

			return nil
		},
	}
}

// describeScopeError prefers the user-facing scoped message (already built
// from the remote detail or a generic fallback) over the raw wire error.
func describeScopeError(store *state.Store, scope state.Scope, err error) error {
	if msg, ok := store.Error(scope); ok {
		return errors.New(msg)
	}

	return err
}
