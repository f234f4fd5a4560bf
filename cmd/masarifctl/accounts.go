package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	accountsCmd := &cobra.Command{Use: "accounts", Short: "Account operations"}

	var userID string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().
				Get(fmt.Sprintf("/api/users/%s/accounts", userID)))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = listCmd.MarkFlagRequired("user")
	accountsCmd.AddCommand(listCmd)

	txCmd := &cobra.Command{
		Use:   "transactions ACCOUNT_ID",
		Short: "List recent transactions on an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().
				Get(fmt.Sprintf("/api/users/%s/accounts/%s/transactions", userID, args[0])))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	txCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = txCmd.MarkFlagRequired("user")
	accountsCmd.AddCommand(txCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete ACCOUNT_ID",
		Short: "Soft-delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := checkStatus(client().R().
				Delete(fmt.Sprintf("/api/users/%s/accounts/%s", userID, args[0])))
			return err
		},
	}
	deleteCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = deleteCmd.MarkFlagRequired("user")
	accountsCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(accountsCmd)
}
