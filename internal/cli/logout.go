package cli

import "github.com/spf13/cobra"

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.portal()
			if err != nil {
				return err
			}
			client.Logout(cmd.Context())
			a.printer.Success("signed out")
			return nil
		},
	}
}
