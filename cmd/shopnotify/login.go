package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/shopnotify/internal/credential"
	"github.com/nhle/shopnotify/internal/ui/login"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a storefront access token in the system keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := loginToken
		if token == "" {
			if err := login.Form(&token).Run(); err != nil {
				return fmt.Errorf("reading token: %w", err)
			}
		}

		tokens := credential.NewKeyringTokenSource()
		if err := tokens.Save(token); err != nil {
			return err
		}

		if exp, ok := credential.Expiry(token); ok {
			fmt.Printf("Logged in. Token valid until %s.\n", exp.Local().Format("2006-01-02 15:04"))
		} else {
			fmt.Println("Logged in.")
		}
		logger.Info("access token stored")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "access token (prompted when empty)")
	rootCmd.AddCommand(loginCmd)
}
