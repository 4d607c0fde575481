package cli

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goPortal/permission"
)

func newRolesCommand(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List the role catalog and each role's dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.portal()
			if err != nil {
				return err
			}
			catalog, err := client.Roles(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.All())
			}

			resolver := client.Resolver()
			rows := make([][]string, 0, catalog.Len())
			for _, role := range catalog.All() {
				decision := resolver.Resolve(&role)
				granted := strconv.Itoa(len(decision.Permissions.Tokens()))
				if decision.Permissions.Kind() == permission.KindUnrestricted {
					granted = "all"
				}
				rows = append(rows, []string{
					strconv.FormatInt(role.ID, 10),
					role.Slug,
					role.Name,
					decision.Route,
					granted,
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"id", "slug", "name", "dashboard", "permissions"}, rows)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
