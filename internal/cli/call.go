package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	goPortal "github.com/MrEthical07/goPortal"
)

func newCallCommand(a *app) *cobra.Command {
	var (
		data        string
		contentType string
		public      bool
		headers     []string
	)

	cmd := &cobra.Command{
		Use:   "call METHOD TARGET",
		Short: "Send a request with the stored credentials",
		Long: `Send one request through the dispatcher. A rejected access credential is
renewed once and the request replayed.

Examples:
  goportal call GET /api/pickups/
  goportal call POST /api/complaints/ --data '{"ward": 7}'
  goportal call GET /auth/roles/ --public`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := goPortal.Request{
				Method: strings.ToUpper(args[0]),
				Target: args[1],
				Public: public,
			}
			if data != "" {
				req.Body = goPortal.RawBody([]byte(data), contentType)
			}
			if len(headers) > 0 {
				req.Header = http.Header{}
				for _, h := range headers {
					name, value, ok := strings.Cut(h, ":")
					if !ok {
						return fmt.Errorf("invalid header %q: want Name: value", h)
					}
					req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
				}
			}

			client, err := a.portal()
			if err != nil {
				return err
			}
			resp, err := client.Do(cmd.Context(), req)
			if err != nil {
				var reqErr *goPortal.RequestError
				if errors.As(err, &reqErr) && reqErr.SessionLost() {
					a.printer.Warning("session expired, run goportal login")
				}
				return err
			}

			a.printer.Success("%d %s", resp.Status, http.StatusText(resp.Status))
			if resp.Empty() {
				return nil
			}
			return writeBody(cmd, resp.Body)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringVar(&contentType, "content-type", "application/json", "content type of --data")
	cmd.Flags().BoolVar(&public, "public", false, "send without the access credential")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header as 'Name: value'")
	return cmd
}

// writeBody pretty-prints JSON bodies and copies anything else verbatim.
func writeBody(cmd *cobra.Command, body []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		pretty.WriteByte('\n')
		_, err := pretty.WriteTo(cmd.OutOrStdout())
		return err
	}
	_, err := cmd.OutOrStdout().Write(body)
	return err
}
