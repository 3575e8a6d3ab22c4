package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/replybot/internal/credential"
)

func newAuthorizeCmd(flags *rootFlags) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Run the OAuth consent flow and save the credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			if reset {
				if err := resetCredential(a.credentialStore()); err != nil {
					return err
				}
				a.logger.Info("saved credential removed", "store", a.cfg.Auth.TokenStore)
			}
			ts, err := a.authorizer(cmd.OutOrStdout()).Authorize(cmd.Context())
			if err != nil {
				return fmt.Errorf("authorize: %w", err)
			}
			if _, err := ts.Token(); err != nil {
				return fmt.Errorf("verify token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential saved (%s store).\n", a.cfg.Auth.TokenStore)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "forget the saved credential and consent again")
	return cmd
}

func resetCredential(store credential.Store) error {
	d, ok := store.(credential.Deleter)
	if !ok {
		return fmt.Errorf("token store %T cannot be reset", store)
	}
	if err := d.Delete(); err != nil {
		return fmt.Errorf("reset credential: %w", err)
	}
	return nil
}
