package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd(cfgPath *string) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			user, err := a.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			fmt.Printf("signed in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompts on stdin when omitted)")
	return cmd
}

func newSignupCmd(cfgPath *string) *cobra.Command {
	var password, name string

	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Register a new account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			user, err := a.Signup(cmd.Context(), args[0], pw, name)
			if err != nil {
				return err
			}
			fmt.Printf("account created, signed in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompts on stdin when omitted)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newLogoutCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Logout()
			fmt.Println("signed out")
			return nil
		},
	}
}

func newWhoamiCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := a.Session()
			if !sess.IsAuthenticated() {
				left, err := a.RemainingGuestAnalyses()
				if err != nil {
					return err
				}
				fmt.Printf("not signed in, %d guest analyses remaining\n", left)
				return nil
			}
			fmt.Printf("signed in as %s <%s>\n", sess.User.Name, sess.User.Email)
			if exp, ok := a.TokenExpiry(); ok {
				fmt.Printf("session expires %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func newRefreshCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("session renewed")
			return nil
		},
	}
}

func newResetPasswordCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Recover a forgotten password",
	}

	request := &cobra.Command{
		Use:   "request <email>",
		Short: "Email a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RequestPasswordReset(c.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("if the address is registered, a reset email is on its way")
			return nil
		},
	}

	var password string
	confirm := &cobra.Command{
		Use:   "confirm <token>",
		Short: "Set a new password using a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			if err := a.ResetPassword(c.Context(), args[0], pw); err != nil {
				return err
			}
			fmt.Println("password updated, you can sign in now")
			return nil
		},
	}
	confirm.Flags().StringVar(&password, "password", "", "new password (prompts on stdin when omitted)")

	cmd.AddCommand(request, confirm)
	return cmd
}

// resolvePassword returns the flag value or reads one line from stdin.
func resolvePassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
