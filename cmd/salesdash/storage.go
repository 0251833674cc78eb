package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"salesdash/internal/storage"
)

func (a *app) storageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Manage the local preference store",
	}
	cmd.AddCommand(a.storageStatusCmd())
	cmd.AddCommand(a.storageEncryptCmd())
	cmd.AddCommand(a.storageDecryptCmd())
	return cmd
}

func (a *app) openStore() (*storage.Store, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := storage.New(a.cfg.DataDirectory, storage.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}
	return store, nil
}

func (a *app) storageStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where preferences are stored and whether they are encrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			keys, err := store.Keys()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directory: %s\n", store.BaseDir())
			fmt.Fprintf(out, "Encrypted: %t\n", store.IsEncrypted())
			fmt.Fprintf(out, "Keys:      %d\n", len(keys))
			for _, k := range keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		},
	}
}

func (a *app) storageEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt stored preferences with a passphrase",
		Long: fmt.Sprintf(`Encrypt stored preferences with a passphrase of at least %d characters.

The server then needs the same passphrase in storage_passphrase
(or SALESDASH_STORAGE_PASSPHRASE) to read them.`, storage.MinPassphraseLength),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store.IsEncrypted() {
				return fmt.Errorf("preferences in %s are already encrypted", store.BaseDir())
			}

			passphrase, err := readPassphrase(cmd.InOrStdin(), cmd.ErrOrStderr(), "New passphrase: ")
			if err != nil {
				return err
			}
			if err := store.EnableEncryption(passphrase); err != nil {
				return err
			}

			a.logger.Info().Str("dir", store.BaseDir()).Msg("preference store encrypted")
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences encrypted.")
			return nil
		},
	}
}

func (a *app) storageDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Remove encryption from stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if !store.IsEncrypted() {
				return fmt.Errorf("preferences in %s are not encrypted", store.BaseDir())
			}

			passphrase, err := readPassphrase(cmd.InOrStdin(), cmd.ErrOrStderr(), "Passphrase: ")
			if err != nil {
				return err
			}
			if err := store.DisableEncryption(passphrase); err != nil {
				return err
			}

			a.logger.Info().Str("dir", store.BaseDir()).Msg("preference store decrypted")
			fmt.Fprintln(cmd.OutOrStdout(), "Preferences decrypted.")
			return nil
		},
	}
}

// readPassphrase reads without echo from a terminal, or a single line from
// anything else so the passphrase can be piped in
func readPassphrase(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
