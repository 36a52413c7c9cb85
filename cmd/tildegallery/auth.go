package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Tweska/TildeverseGallery/pkg/auth"
	"github.com/Tweska/TildeverseGallery/pkg/remote"
	"github.com/Tweska/TildeverseGallery/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the passphrase of the SSH identity file",
	Long: `Manage the passphrase used to unlock the SSH identity file that the
inventory and upload steps log in with.

Passphrases are looked up in:
  - the system keychain (when available)
  - the ` + auth.PassphraseEnv + ` environment variable

An identity file without a passphrase needs no setup here.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [identity-file]",
	Short: "Store the passphrase in the system keychain",
	Long: `Prompt for the passphrase of the identity file (the configured
remote.identity_file by default), check that it unlocks the key and store it
in the system keychain.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSet,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete [identity-file]",
	Short: "Remove a stored passphrase",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthDelete,
}

var authGuideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to set up SSH access to the server",
	Args:  cobra.NoArgs,
	RunE:  runAuthGuide,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authGuideCmd)
}

func identityFile(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Remote.IdentityFile
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	path := identityFile(a, args)
	manager := auth.NewManager()

	if manager.Exists(path) {
		fmt.Printf("A passphrase for %s is already stored. Replace it? (y/N): ", path)
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Printf("Passphrase for %s: ", path)
	passphrase, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}

	// The key must actually open with it
	if _, err := remote.LoadSigner(path, func() ([]byte, error) { return []byte(passphrase), nil }); err != nil {
		return fmt.Errorf("passphrase does not unlock %s: %w", path, err)
	}

	if err := manager.Store(path, passphrase); err != nil {
		return err
	}
	ui.PrintSuccess("Passphrase stored for " + path)
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	path := identityFile(a, args)

	if err := auth.NewManager().Delete(path); err != nil {
		return err
	}
	ui.PrintSuccess("Passphrase removed for " + path)
	return nil
}

func runAuthGuide(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	auth.ShowKeySetupGuide(os.Stdout, a.cfg.Remote.Host, a.cfg.Remote.User)
	return nil
}

// readPassword reads a line from stdin without echo when it is a terminal
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
