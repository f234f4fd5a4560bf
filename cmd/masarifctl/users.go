package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	var channelID string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user by channel id (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().
				SetBody(map[string]string{"channelId": channelID}).
				Post("/api/users"))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	registerCmd.Flags().StringVarP(&channelID, "channel", "c", "", "External channel id (required)")
	_ = registerCmd.MarkFlagRequired("channel")
	usersCmd.AddCommand(registerCmd)

	getCmd := &cobra.Command{
		Use:   "get USER_ID",
		Short: "Get user by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().Get("/api/users/" + args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	usersCmd.AddCommand(getCmd)

	rootCmd.AddCommand(usersCmd)
}
