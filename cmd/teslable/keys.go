package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backkem/teslable/pkg/crypto"
	"github.com/backkem/teslable/pkg/keystore"
)

func (a *app) keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate and store the client key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.keyStore()
			if !force {
				_, err := store.Load()
				if err == nil {
					return fmt.Errorf("key file %s exists, use --force to replace it", store.Path())
				}
				if !errors.Is(err, keystore.ErrNotFound) {
					return err
				}
			}

			kp, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := store.Save(kp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key pair written to %s\n", store.Path())
			printKey(cmd, kp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key pair")
	return cmd
}

func (a *app) pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print the stored public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := a.keyStore().Load()
			if err != nil {
				return err
			}
			printKey(cmd, kp)
			return nil
		},
	}
}

func printKey(cmd *cobra.Command, kp *crypto.KeyPair) {
	id := kp.KeyID()
	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\nKey ID:     %s\n",
		hex.EncodeToString(kp.PublicKey()), hex.EncodeToString(id[:]))
}
