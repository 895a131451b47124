package cmd

import (
	"fmt"
	"time"

	"github.com/eventeye/server/internal/auth"
	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRole    string
	tokenEmail   string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with the configured secret",
	Long: `Mint a bearer token. The default is the long-lived anonymous token that
the web client sends to /signup, /login and /verify.

Examples:
  # Public client token
  server token

  # Organizer token for scripting
  server token --role organizer --subject ops --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}

		manager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
		if err != nil {
			return err
		}

		token, err := mintToken(manager, tokenSubject, tokenRole, tokenEmail, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "web-client", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleAnon), "token role (anon, organizer)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim (optional)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 365*24*time.Hour, "token lifetime")
}

// mintToken rejects roles that would silently degrade to anon.
func mintToken(manager *auth.JWTManager, subject, role, email string, ttl time.Duration) (string, error) {
	normalized := auth.NormalizeRole(role)
	if string(normalized) != role {
		return "", fmt.Errorf("unknown role %q", role)
	}
	return manager.GenerateWithTTL(subject, normalized, email, ttl)
}
