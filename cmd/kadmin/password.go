package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/kadmin/core/password"
)

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "print the digest of a password as stored for administrators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadService()
			if err != nil {
				return err
			}
			passwords, err := password.New(s.Secret)
			if err != nil {
				return fmt.Errorf("SECRET: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), passwords.Derive(args[0]))
			return nil
		},
	}
}
