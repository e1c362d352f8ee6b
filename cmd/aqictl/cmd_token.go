package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/airadvisor/airadvisor/internal/auth"
	"github.com/airadvisor/airadvisor/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API access token",
	Long: `Mint a bearer token signed with the configured JWT key. Admin tokens
unlock the feature flag endpoints.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject, e.g. an operator email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleAdmin, "admin or reader")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default from config)")
	_ = tokenCmd.MarkFlagRequired("subject")
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenRole != auth.RoleAdmin && tokenRole != auth.RoleReader {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	expiry := cfg.Auth.TokenExpiry
	if tokenTTL > 0 {
		expiry = tokenTTL
	}
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.SigningKey(),
		Issuer:     cfg.Auth.Issuer,
		Expiry:     expiry,
	})

	token, expiresAt, err := svc.GenerateAccessToken(tokenSubject, tokenRole)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"token":     token,
		"role":      tokenRole,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}
