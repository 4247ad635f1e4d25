package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/chequer/internal/domain"
	"github.com/iho/chequer/internal/infrastructure/auth"
)

type cliOptions struct {
	baseURL string
	token   string
	timeout time.Duration
}

func (o *cliOptions) client() *apiClient {
	return newAPIClient(o.baseURL, o.token, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "chequer-cli",
		Short:         "Chequer CLI tool",
		Long:          `A command line interface for submitting cheques and inspecting clearances through the chequer API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("CHEQUER_URL", "http://localhost:8080"), "Base URL of the chequer API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("CHEQUER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(
		newClearanceCmd(opts),
		newAccountCmd(opts),
		newTransferCmd(opts),
		newTokenCmd(),
	)

	return rootCmd
}

func newClearanceCmd(opts *cliOptions) *cobra.Command {
	clearanceCmd := &cobra.Command{
		Use:   "clearance",
		Short: "Cheque clearance operations",
	}

	var imagePath, handle, to string
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a cheque image for clearance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (imagePath == "") == (handle == "") {
				return fmt.Errorf("exactly one of --image or --handle is required")
			}

			var (
				body []byte
				err  error
			)
			if imagePath != "" {
				body, err = opts.client().postFile(cmd.Context(), "/api/v1/clearances", map[string]string{"to_account_number": to}, "image", imagePath)
			} else {
				body, err = opts.client().postJSON(cmd.Context(), "/api/v1/clearances", map[string]string{
					"image_handle":      handle,
					"to_account_number": to,
				})
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	submitCmd.Flags().StringVar(&imagePath, "image", "", "Path to the cheque image")
	submitCmd.Flags().StringVar(&handle, "handle", "", "Handle of an image already in blob storage")
	submitCmd.Flags().StringVar(&to, "to", "", "Destination account number")
	_ = submitCmd.MarkFlagRequired("to")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a clearance record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().get(cmd.Context(), "/api/v1/clearances/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "List requests waiting for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().get(cmd.Context(), "/api/v1/clearances/queue", nil)
			if err != nil {
				return err
			}

			var resp struct {
				Items []struct {
					ID              string    `json:"id"`
					ToAccountNumber string    `json:"to_account_number"`
					ImageHandle     string    `json:"image_handle"`
					SubmittedAt     time.Time `json:"submitted_at"`
				} `json:"items"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTO\tIMAGE\tSUBMITTED")
			for _, item := range resp.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.ToAccountNumber, truncate(item.ImageHandle, 40), item.SubmittedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	var limit, offset int
	clearedCmd := &cobra.Command{
		Use:   "cleared",
		Short: "List cleared cheques",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().get(cmd.Context(), "/api/v1/clearances/cleared", url.Values{
				"limit":  {strconv.Itoa(limit)},
				"offset": {strconv.Itoa(offset)},
			})
			if err != nil {
				return err
			}

			var resp struct {
				Clearances []struct {
					ID                  string `json:"id"`
					SourceAccountNumber string `json:"from_account_number"`
					DestinationAccount  string `json:"to_account_number"`
					Amount              string `json:"amount"`
					ChequeNumber        string `json:"cheque_number"`
				} `json:"clearances"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFROM\tTO\tAMOUNT\tCHEQUE")
			for _, c := range resp.Clearances {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.SourceAccountNumber, c.DestinationAccount, c.Amount, c.ChequeNumber)
			}
			return tw.Flush()
		},
	}
	clearedCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	clearedCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var resubmitTo string
	resubmitCmd := &cobra.Command{
		Use:   "resubmit <id>",
		Short: "Re-submit a failed clearance, optionally to a corrected account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().postJSON(cmd.Context(), "/api/v1/clearances/"+url.PathEscape(args[0])+"/resubmit", map[string]string{
				"to_account_number": resubmitTo,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	resubmitCmd.Flags().StringVar(&resubmitTo, "to", "", "Corrected destination account number")

	clearanceCmd.AddCommand(submitCmd, getCmd, queueCmd, clearedCmd, resubmitCmd)
	return clearanceCmd
}

func newAccountCmd(opts *cliOptions) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	getCmd := &cobra.Command{
		Use:   "get <account-number>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().get(cmd.Context(), "/api/v1/accounts/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().get(cmd.Context(), "/api/v1/accounts", url.Values{
				"limit":  {strconv.Itoa(limit)},
				"offset": {strconv.Itoa(offset)},
			})
			if err != nil {
				return err
			}

			var resp struct {
				Accounts []struct {
					AccountNumber string `json:"account_number"`
					HolderName    string `json:"holder_name"`
					Balance       string `json:"balance"`
				} `json:"accounts"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tHOLDER\tBALANCE")
			for _, a := range resp.Accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.AccountNumber, truncate(a.HolderName, 32), a.Balance)
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var fields accountFields
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account with a reference signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().postFile(cmd.Context(), "/api/v1/accounts", map[string]string{
				"account_number":  fields.number,
				"routing_code":    fields.routingCode,
				"holder_name":     fields.holderName,
				"email":           fields.email,
				"phone":           fields.phone,
				"opening_balance": fields.openingBalance,
			}, "signature", fields.signaturePath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	createCmd.Flags().StringVar(&fields.number, "number", "", "Account number")
	createCmd.Flags().StringVar(&fields.routingCode, "routing-code", "", "Branch routing code")
	createCmd.Flags().StringVar(&fields.holderName, "holder", "", "Account holder name")
	createCmd.Flags().StringVar(&fields.email, "email", "", "Holder email")
	createCmd.Flags().StringVar(&fields.phone, "phone", "", "Holder phone")
	createCmd.Flags().StringVar(&fields.openingBalance, "opening-balance", "0", "Opening balance")
	createCmd.Flags().StringVar(&fields.signaturePath, "signature", "", "Path to the reference signature image")
	_ = createCmd.MarkFlagRequired("number")
	_ = createCmd.MarkFlagRequired("holder")
	_ = createCmd.MarkFlagRequired("signature")

	accountCmd.AddCommand(getCmd, listCmd, createCmd)
	return accountCmd
}

type accountFields struct {
	number         string
	routingCode    string
	holderName     string
	email          string
	phone          string
	openingBalance string
	signaturePath  string
}

func newTransferCmd(opts *cliOptions) *cobra.Command {
	var from, to, amount string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds directly between two accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.client().postJSON(cmd.Context(), "/api/v1/transfers", map[string]string{
				"from_account_number": from,
				"to_account_number":   to,
				"amount":              amount,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source account number")
	cmd.Flags().StringVar(&to, "to", "", "Destination account number")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to move")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newTokenCmd() *cobra.Command {
	var secret, subject, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(domain.Principal{
				Subject: subject,
				Role:    domain.Role(role),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "Role: viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
