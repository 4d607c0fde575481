package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	goPortal "github.com/MrEthical07/goPortal"
)

func newLoginCommand(a *app) *cobra.Command {
	var (
		username string
		password string
		kind     string
		roles    []int64
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential pair",
		Long: `Sign in with a username or email address. The password is read from
standard input when --password is not given.

Examples:
  goportal login -u clerk
  goportal login -u admin --kind central_authority
  goportal login -u hauler --role 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				password = line
			}

			var opts []goPortal.LoginOption
			if kind != "" {
				k, err := goPortal.ParseAccountKind(kind)
				if err != nil {
					return err
				}
				opts = append(opts, goPortal.ExpectAccountKind(k))
			}
			if len(roles) > 0 {
				opts = append(opts, goPortal.ExpectRoles(roles...))
			}

			client, err := a.portal()
			if err != nil {
				return err
			}
			sess, err := client.Login(cmd.Context(), username, password, opts...)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			a.printer.Success("signed in as %s", a.printer.Bold(sess.Identity.Label()))
			a.printer.Info("dashboard: %s", sess.Route)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	cmd.Flags().StringVar(&kind, "kind", "", "required account kind")
	cmd.Flags().Int64SliceVar(&roles, "role", nil, "allowed role ids")
	return cmd
}
