// ABOUTME: Login and signup commands
// ABOUTME: Password and Google federated sign-in, saving the session token

package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and save the session",
	Long: `Sign in with email and password, or with a Google ID token.

Examples:
  trackmate login ada@example.com
  trackmate login ada@example.com --signup
  trackmate login --google-token eyJhbGciOi...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := openStore(ctx); err != nil {
			return err
		}

		googleToken, _ := cmd.Flags().GetString("google-token")
		if googleToken != "" {
			session, err := combined.SignInGoogleIDToken(ctx, googleToken)
			if err != nil {
				return fmt.Errorf("google sign-in failed: %w", err)
			}
			return saveSession(session.Token, session.Email)
		}

		if len(args) == 0 {
			return fmt.Errorf("email required unless --google-token is given")
		}
		email := args[0]

		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = string(raw)
		}

		signup, _ := cmd.Flags().GetBool("signup")
		var token string
		if signup {
			session, err := combined.SignUp(ctx, email, password)
			if err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			token = session.Token
		} else {
			session, err := combined.SignInPassword(ctx, email, password)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			token = session.Token
		}
		return saveSession(token, email)
	},
}

func saveSession(token, email string) error {
	cfg.SessionToken = token
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Printf("Signed in as %s\n", color.GreenString(email))
	return nil
}

func init() {
	loginCmd.Flags().String("password", "", "Password (prompted when omitted)")
	loginCmd.Flags().String("google-token", "", "Google ID token for federated sign-in")
	loginCmd.Flags().Bool("signup", false, "Create the account instead of signing in")
	rootCmd.AddCommand(loginCmd)
}
