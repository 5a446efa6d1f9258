package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gofalre.io/hendrix/auth"
	"gofalre.io/hendrix/models"
)

var (
	loginCmd = &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in to the store",
		Long:  `Signs in and keeps the session for later commands. The password is read from --password or, when omitted, from the first line of stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	loginPassword string

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Create a customer account and sign in with it",
		Args:  cobra.NoArgs,
		RunE:  runRegister,
	}
	registerReq models.RegisterRequest

	forgotPasswordCmd = &cobra.Command{
		Use:   "forgot-password [email]",
		Short: "Mail a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := app.svc.ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(message))
			return nil
		},
	}

	resetPasswordCmd = &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the token from the reset link",
		Args:  cobra.NoArgs,
		RunE:  runResetPassword,
	}
	resetParams auth.ResetPasswordParams

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
)

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")

	registerCmd.Flags().StringVar(&registerReq.Name, "name", "", "first name")
	registerCmd.Flags().StringVar(&registerReq.LastName, "last-name", "", "last name")
	registerCmd.Flags().StringVar(&registerReq.Email, "email", "", "email address")
	registerCmd.Flags().StringVar(&registerReq.Password, "password", "", "password")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("password")

	resetPasswordCmd.Flags().StringVar(&resetParams.Token, "token", "", "token from the reset link")
	resetPasswordCmd.Flags().StringVar(&resetParams.Password, "password", "", "new password")
	resetPasswordCmd.Flags().StringVar(&resetParams.Confirm, "confirm", "", "new password again")
	_ = resetPasswordCmd.MarkFlagRequired("token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.New("no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	user, err := app.svc.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Bienvenido, %s", displayName(user))))

	pending, err := app.svc.PendingOrder(cmd.Context())
	if err == nil && pending != nil {
		fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render(app.svc.Cart().Message))
	}
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	if err := app.svc.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Sesión cerrada")
	return nil
}

func runRegister(cmd *cobra.Command, _ []string) error {
	user, err := app.svc.Register(cmd.Context(), &registerReq)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Cuenta creada. Bienvenido, %s", displayName(user))))
	return nil
}

func runResetPassword(cmd *cobra.Command, _ []string) error {
	valid, err := app.svc.VerifyResetToken(cmd.Context(), resetParams.Token)
	if err != nil {
		return err
	}
	if !valid {
		fmt.Fprintln(cmd.OutOrStdout(), errorStyle.Render("El enlace de recuperación es inválido o expiró"))
		return nil
	}

	message, err := app.svc.ResetPassword(cmd.Context(), resetParams)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(message))
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	if app.svc.CurrentUser() == nil {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No has iniciado sesión"))
		return nil
	}

	user, err := app.svc.RefreshSession(cmd.Context())
	switch {
	case errors.Is(err, auth.ErrNotSignedIn):
		fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("Tu sesión expiró. Inicia sesión nuevamente."))
		return nil
	case errors.Is(err, auth.ErrAccountInactive):
		fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("Tu cuenta está desactivada"))
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", displayName(user), user.Email, user.Role)
	return nil
}

func displayName(u *models.User) string {
	name := strings.TrimSpace(u.Name + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
