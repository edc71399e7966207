package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
)

func newSignCmd(a *app) *cobra.Command {
	var (
		method    string
		timestamp string
		payload   string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the Bybit v5 signature for a payload",
		Long: `Print the X-BAPI-SIGN value for a request, signed with the configured API
secret. The payload is the raw JSON body for POST or the query string for GET.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			method = strings.ToUpper(method)
			if method != http.MethodGet && method != http.MethodPost {
				return fmt.Errorf("unsupported method %q", method)
			}
			if timestamp == "" {
				timestamp = strconv.FormatInt(time.Now().UnixMilli(), 10)
			}

			signer := bybit.NewSigner(a.cfg.Bybit.APIKey, a.cfg.Bybit.APISecret)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "X-BAPI-API-KEY: %s\n", signer.APIKey())
			fmt.Fprintf(out, "X-BAPI-TIMESTAMP: %s\n", timestamp)
			fmt.Fprintf(out, "X-BAPI-RECV-WINDOW: %s\n", bybit.RecvWindow)
			fmt.Fprintf(out, "X-BAPI-SIGN: %s\n", signer.Sign(timestamp, payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", http.MethodPost, "HTTP method the payload belongs to")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "millisecond timestamp (default now)")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON body or query string to sign")
	return cmd
}
