package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/oohrelay/internal/credential"
)

var credentialsStdin bool

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the mailbox password in the system keyring",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the mailbox password",
	Long: `Prompt for the password of account.username and store it in the system
keyring. With --stdin the password is read from the first line of
standard input instead, for provisioning scripts.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored mailbox password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, err := accountUsername()
		if err != nil {
			return err
		}
		if err := credential.Delete(credential.PasswordKey(username)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password for %s removed\n", username)
		return nil
	},
}

func init() {
	credentialsSetCmd.Flags().BoolVar(&credentialsStdin, "stdin", false, "read the password from standard input")
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
}

func accountUsername() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Account.Username == "" {
		return "", errors.New("account.username is not configured")
	}
	return cfg.Account.Username, nil
}

func runCredentialsSet(cmd *cobra.Command, _ []string) error {
	username, err := accountUsername()
	if err != nil {
		return err
	}

	var password string
	if credentialsStdin {
		password, err = readPassword(cmd.InOrStdin())
	} else {
		password, err = promptPassword(username)
	}
	if err != nil {
		return err
	}

	if err := credential.Set(credential.PasswordKey(username), password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password for %s stored\n", username)
	return nil
}

func promptPassword(username string) (string, error) {
	var password string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Mailbox password").
				Description(username).
				EchoMode(huh.EchoModePassword).
				Validate(requirePassword).
				Value(&password),
		),
	).Run()
	if err != nil {
		return "", err
	}
	return password, nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if err := requirePassword(password); err != nil {
		return "", err
	}
	return password, nil
}

func requirePassword(s string) error {
	if s == "" {
		return errors.New("password is required")
	}
	return nil
}
