package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"flickrmirror/pkg/auth"
	"flickrmirror/pkg/config"
	"flickrmirror/pkg/flickr"
	"flickrmirror/pkg/logger"
	"flickrmirror/pkg/ui"
)

var (
	showTokenHelp bool
	skipVerify    bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Flickr credentials",
	Long: `Manage stored Flickr API keys and OAuth access tokens.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file (AES-GCM with a PBKDF2 derived key)
  - Environment variables (read only)

Never share your token or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a Flickr API key and OAuth token",
	Long: `Store a Flickr API key and OAuth access token.

You will be prompted for the API key and secret and for the OAuth token and
token secret. The token is checked with flickr.test.login before it is saved,
and the account NSID is recorded. The name defaults to the Flickr username.`,
	Example: `  # Interactive login
  flickrmirror auth login

  # Show how to obtain a token
  flickrmirror auth login --help-token`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

Without a name you can pick one of the stored accounts or remove them all.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runList,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show which Flickr account the credentials belong to",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().BoolVar(&showTokenHelp, "help-token", false, "explain how to obtain an API key and OAuth token")
	loginCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store the token without calling flickr.test.login")
	whoamiCmd.Flags().StringVarP(&accountName, "account", "a", "", "stored account to check")
}

func runLogin(cmd *cobra.Command, args []string) error {
	if showTokenHelp {
		auth.ShowTokenGuide(ui.Output)
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowQuickGuide(ui.Output)
	fmt.Fprintln(ui.Output)

	account := &auth.Account{}
	if len(args) > 0 {
		account.Username = strings.TrimSpace(args[0])
	}

	cfg, err := config.LoadUnvalidated(configFile, nil)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if account.APIKey, err = prompt(reader, "API key", cfg.Flickr.APIKey); err != nil {
		return err
	}
	fmt.Fprintln(ui.Output, "\nSecrets are hidden as you type.")
	if account.APISecret, err = promptSecret(reader, "API secret", cfg.Flickr.APISecret); err != nil {
		return err
	}
	if account.OAuthToken, err = promptSecret(reader, "OAuth token", ""); err != nil {
		return err
	}
	if account.OAuthTokenSecret, err = promptSecret(reader, "OAuth token secret", ""); err != nil {
		return err
	}

	if !skipVerify {
		fmt.Fprintln(ui.Output, "\nVerifying token with Flickr...")
		user, err := verifyAccount(cmd.Context(), cfg, account)
		if err != nil {
			return fmt.Errorf("token verification failed: %w", err)
		}
		account.NSID = user.ID
		if account.Username == "" {
			account.Username = user.Username.Content
		}
		ui.PrintInfo("Authenticated as", fmt.Sprintf("%s (%s)", user.Username.Content, user.ID))
	}
	if account.Username == "" {
		if account.Username, err = prompt(reader, "Account name", "default"); err != nil {
			return err
		}
	}

	if existing, _ := manager.Retrieve(account.Username); existing != nil {
		answer, _ := prompt(reader, fmt.Sprintf("Account '%s' already exists. Replace it? (y/N)", account.Username), "n")
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess("Account saved: " + account.Username)
	fmt.Fprintln(ui.Output, "\nStart mirroring with:")
	fmt.Fprintln(ui.Output, "  flickrmirror mirror")
	if accounts, _ := manager.List(); len(accounts) > 1 {
		fmt.Fprintf(ui.Output, "  flickrmirror mirror --account %s\n", account.Username)
	}
	return nil
}

// verifyAccount calls flickr.test.login with the entered credentials
func verifyAccount(ctx context.Context, cfg *config.Config, account *auth.Account) (*flickr.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := flickr.NewClient(flickr.Options{
		Endpoint: cfg.Flickr.Endpoint,
		Credentials: flickr.Credentials{
			APIKey:           account.APIKey,
			APISecret:        account.APISecret,
			OAuthToken:       account.OAuthToken,
			OAuthTokenSecret: account.OAuthTokenSecret,
		},
		Logger: logger.NewNopLogger(),
	})
	if err != nil {
		return nil, err
	}
	return client.TestLogin(ctx)
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return nil
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts found")
		return nil
	}

	fmt.Fprintln(ui.Output, "Select account to remove:")
	for i, account := range accounts {
		fmt.Fprintf(ui.Output, "  %d. %s\n", i+1, account.Username)
	}
	fmt.Fprintf(ui.Output, "  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Fprintf(ui.Output, "  0. Cancel\n\n")

	reader := bufio.NewReader(os.Stdin)
	input, _ := prompt(reader, "Choice", "0")
	var choice int
	fmt.Sscanf(input, "%d", &choice)

	switch {
	case choice == 0:
		return nil
	case choice == len(accounts)+1:
		confirm, _ := prompt(reader, "Remove ALL accounts? This cannot be undone! (yes/N)", "")
		if confirm != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
	case choice > 0 && choice <= len(accounts):
		name := accounts[choice-1].Username
		if err := manager.Delete(name); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
		ui.PrintSuccess("Account removed: " + name)
	default:
		return fmt.Errorf("invalid choice %q", input)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	printAccounts(ui.Output, accounts)
	return nil
}

func printAccounts(w io.Writer, accounts []*auth.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "No stored accounts. Use 'flickrmirror auth login' to add one.")
		return
	}

	fmt.Fprintln(w, ui.Magenta("Stored Accounts"))
	fmt.Fprintln(w)
	for i, account := range accounts {
		s := auth.SanitizeAccount(account)
		fmt.Fprintf(w, "%d. %s\n", i+1, s.Username)
		if s.NSID != "" {
			fmt.Fprintf(w, "   NSID: %s\n", s.NSID)
		}
		if s.APIKey != "" {
			fmt.Fprintf(w, "   API key: %s\n", s.APIKey)
		}
		fmt.Fprintf(w, "   OAuth token: %s\n", s.OAuthToken)
		if !s.LastModified.IsZero() {
			fmt.Fprintf(w, "   Last modified: %s\n", s.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(w)
	}
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg, account, err := loadConfig(globalFlags(cmd), accountName)
	if err != nil {
		return err
	}
	if !cfg.HasToken() {
		return fmt.Errorf("no OAuth token configured, run 'flickrmirror auth login'")
	}

	check := &auth.Account{
		APIKey:           cfg.Flickr.APIKey,
		APISecret:        cfg.Flickr.APISecret,
		OAuthToken:       cfg.Flickr.OAuthToken,
		OAuthTokenSecret: cfg.Flickr.OAuthTokenSecret,
	}
	user, err := verifyAccount(cmd.Context(), cfg, check)
	if err != nil {
		return err
	}

	if account != nil {
		ui.PrintInfo("Stored account", account.Username)
	}
	ui.PrintInfo("Flickr user", user.Username.Content)
	ui.PrintInfo("NSID", user.ID)
	return nil
}

// prompt reads one line, returning def when the line is empty
func prompt(r *bufio.Reader, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(ui.Output, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(ui.Output, "%s: ", label)
	}
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if def != "" {
			return def, nil
		}
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// promptSecret reads without echo when stdin is a terminal
func promptSecret(r *bufio.Reader, label, def string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(r, label, def)
	}

	if def != "" {
		fmt.Fprintf(ui.Output, "%s [keep configured]: ", label)
	} else {
		fmt.Fprintf(ui.Output, "%s: ", label)
	}
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(ui.Output)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	if s := strings.TrimSpace(string(secret)); s != "" {
		return s, nil
	}
	if def == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return def, nil
}
