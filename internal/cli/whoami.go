package cli

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	goPortal "github.com/MrEthical07/goPortal"
	"github.com/MrEthical07/goPortal/permission"
)

// sessionView is the JSON form of a resolved session.
type sessionView struct {
	ID              int64    `json:"id"`
	Label           string   `json:"label"`
	Email           string   `json:"email,omitempty"`
	AccountKind     string   `json:"account_kind"`
	RoleID          int64    `json:"role_id,omitempty"`
	Role            string   `json:"role,omitempty"`
	Route           string   `json:"route"`
	Unrestricted    bool     `json:"unrestricted"`
	Permissions     []string `json:"permissions"`
	AccessExpiresAt string   `json:"access_expires_at,omitempty"`
}

func newSessionView(s *goPortal.Session) sessionView {
	v := sessionView{
		ID:          s.Identity.ID,
		Label:       s.Identity.Label(),
		Email:       s.Identity.Email,
		AccountKind: string(s.Identity.AccountKind),
		Route:       s.Route,
		Permissions: []string{},
	}
	if s.Role != nil {
		v.RoleID = s.Role.ID
		v.Role = s.Role.Slug
	}
	if s.Permissions != nil {
		v.Unrestricted = s.Permissions.Kind() == permission.KindUnrestricted
		v.Permissions = append(v.Permissions, s.Permissions.Tokens()...)
	}
	if !s.AccessExpiresAt.IsZero() {
		v.AccessExpiresAt = s.AccessExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

func newWhoamiCommand(a *app) *cobra.Command {
	var showPermissions, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the session of the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.portal()
			if err != nil {
				return err
			}
			sess, ok := client.Resume(cmd.Context())
			if !ok {
				return goPortal.ErrNoSession
			}
			view := newSessionView(sess)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}

			rows := [][]string{
				{"user", view.Label},
				{"id", strconv.FormatInt(view.ID, 10)},
				{"account kind", view.AccountKind},
				{"role", view.Role},
				{"dashboard", view.Route},
			}
			if view.AccessExpiresAt != "" {
				rows = append(rows, []string{"access expires", view.AccessExpiresAt})
			}
			if err := renderTable(cmd.OutOrStdout(), []string{"field", "value"}, rows); err != nil {
				return err
			}

			if !showPermissions {
				return nil
			}
			a.printer.Header("Permissions")
			if view.Unrestricted {
				a.printer.Info("unrestricted")
				return nil
			}
			perms := make([][]string, 0, len(view.Permissions))
			for _, token := range view.Permissions {
				perms = append(perms, []string{token})
			}
			return renderTable(cmd.OutOrStdout(), []string{"permission"}, perms)
		},
	}

	cmd.Flags().BoolVar(&showPermissions, "permissions", false, "list granted permissions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
