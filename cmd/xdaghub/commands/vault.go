package commands

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/AlexZinkM/xdaghub/internal/app"
	"github.com/AlexZinkM/xdaghub/internal/config"
	"github.com/AlexZinkM/xdaghub/xdag"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the encrypted vault",
	}
	cmd.AddCommand(vaultCreateCmd(), vaultResealCmd())
	return cmd
}

// promptPassword reads one hidden password from the terminal.
func promptPassword(prompt string) ([]byte, error) {
	if err := config.PromptForPassword(prompt); err != nil {
		return nil, err
	}
	defer config.ClearPassword()
	return config.GetPasswordBytes()
}

// promptNewPassword asks twice and fails on mismatch.
func promptNewPassword(prompt string) ([]byte, error) {
	pw, err := promptPassword(prompt)
	if err != nil {
		return nil, err
	}
	again, err := promptPassword("Repeat password: ")
	if err != nil {
		clear(pw)
		return nil, err
	}
	defer clear(again)
	if string(pw) != string(again) {
		clear(pw)
		return nil, fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

func vaultCreateCmd() *cobra.Command {
	var (
		entropy string
		qrOut   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the encrypted vault and print the first address",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()

			pw, err := promptNewPassword("New vault password: ")
			if err != nil {
				return err
			}
			defer clear(pw)

			qr, err := xdag.CreateWallet(cmd.Context(), w.Keyring, pw, entropy)
			if err != nil {
				return err
			}
			fmt.Printf("Vault created.\nAddress: %s\n", qr.Address)

			if qrOut != "" {
				png, err := base64.StdEncoding.DecodeString(qr.QR)
				if err != nil {
					return err
				}
				if err := os.WriteFile(qrOut, png, 0o600); err != nil {
					return fmt.Errorf("failed to write QR code: %w", err)
				}
				fmt.Printf("QR code written to %s\n", qrOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entropy, "entropy", "", "hex entropy to restore an existing seed (16 to 32 bytes)")
	cmd.Flags().StringVar(&qrOut, "qr", "", "write the address QR code PNG to this file")
	return cmd
}

func vaultResealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reseal",
		Short: "Re-encrypt the vault under a new password and the configured scrypt cost",
		Long: "Decrypts the vault with the current password and seals it again with the new one, " +
			"using VAULT_SCRYPT_N. Reusing the current password only migrates the scrypt cost.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			w, err := app.NewWire(cfg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, w.Close()) }()

			current, err := promptPassword("Current vault password: ")
			if err != nil {
				return err
			}
			defer clear(current)
			// fail before asking for the new password
			if err := w.Keyring.VerifyPassword(cmd.Context(), current); err != nil {
				return err
			}

			next, err := promptNewPassword("New vault password: ")
			if err != nil {
				return err
			}
			defer clear(next)

			if err := w.Keyring.Reseal(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Printf("Vault resealed with scrypt N=%d.\n", cfg.VaultScryptN)
			return nil
		},
	}
}
