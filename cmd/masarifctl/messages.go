package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	var userID, lang string
	sendCmd := &cobra.Command{
		Use:   "send TEXT",
		Short: "Send an utterance for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().
				SetBody(map[string]string{"text": args[0], "languageHint": lang}).
				Post(fmt.Sprintf("/api/users/%s/messages", userID)))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sendCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	sendCmd.Flags().StringVarP(&lang, "lang", "l", "en", "Language hint (ar|en)")
	_ = sendCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(sendCmd)

	confirmCmd := &cobra.Command{
		Use:   "confirm CORRELATION_ID",
		Short: "Confirm a staged action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().
				Post(fmt.Sprintf("/api/confirmations/%s/confirm", args[0])))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(confirmCmd)

	cancelCmd := &cobra.Command{
		Use:   "cancel CORRELATION_ID",
		Short: "Cancel a staged action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := checkStatus(client().R().
				Post(fmt.Sprintf("/api/confirmations/%s/cancel", args[0])))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(cancelCmd)

	var amount, category string
	editCmd := &cobra.Command{
		Use:   "edit CORRELATION_ID",
		Short: "Correct fields on a staged action before confirming",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := map[string]string{}
			if amount != "" {
				patch["amount"] = amount
			}
			if category != "" {
				patch["category"] = category
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to edit; pass --amount or --category")
			}
			data, err := checkStatus(client().R().
				SetBody(patch).
				Patch("/api/confirmations/" + args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	editCmd.Flags().StringVar(&amount, "amount", "", "Corrected amount")
	editCmd.Flags().StringVar(&category, "category", "", "Corrected category")
	rootCmd.AddCommand(editCmd)
}
