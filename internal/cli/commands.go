package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xenking/munchify/internal/domain/account"
	"github.com/xenking/munchify/internal/shell"
)

func newShellCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive ordering shell",
		Long: `Start the interactive ordering shell. The cart lives as long as the shell;
type "help" for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh := shell.New(e.store, cmd.OutOrStdout())
			return sh.Run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

func newMenuCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "menu [category]",
		Short: "List the menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := shell.New(e.store, cmd.OutOrStdout())
			return fail(sh.Exec(cmd.Context(), "menu "+strings.Join(args, " ")))
		},
	}
}

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := e.store.Account().LogIn(cmd.Context(), args[0], args[1])
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s!\n", name)
			return nil
		},
	}
}

func newSignupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <username> <email> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := e.store.Account().SignUp(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.store.Account().LogOut(); err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := e.store.Account().WhoAmI(cmd.Context())
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newOrdersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Show past orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := e.store.OpenHistory().Load(cmd.Context())
			if snap.Err != nil {
				return fail(snap.Err)
			}
			shell.RenderHistory(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newAccountCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the account",
	}

	var upd account.Update
	update := &cobra.Command{
		Use:   "update",
		Short: "Change the username or password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := e.store.Account().Update(cmd.Context(), upd)
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	update.Flags().StringVar(&upd.Username, "username", "", "New username")
	update.Flags().StringVar(&upd.Password, "password", "", "New password")
	update.Flags().StringVar(&upd.ConfirmPassword, "confirm-password", "", "New password, again")

	var yes bool
	remove := &cobra.Command{
		Use:   "delete",
		Short: "Delete the account and its orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "This removes the account and its order history; pass --yes to confirm.")
				return nil
			}
			msg, err := e.store.Account().Delete(cmd.Context())
			if err != nil {
				return fail(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	remove.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	cmd.AddCommand(update, remove)
	return cmd
}
