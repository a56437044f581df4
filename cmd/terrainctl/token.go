package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freeeve/terrainkit/internal/auth"
	"github.com/freeeve/terrainkit/internal/config"
)

func tokenCmd() *cobra.Command {
	var scopes []string
	var secret string

	cmd := &cobra.Command{
		Use:   "token [client-id]",
		Short: "Mint an access and refresh token for a bot client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.Load().JWTSecret
			}
			for _, s := range scopes {
				if s != auth.ScopeRead && s != auth.ScopeWrite {
					return fmt.Errorf("unknown scope %q", s)
				}
			}
			pair, err := auth.NewJWTManager(secret).GenerateTokenPair(args[0], scopes...)
			if err != nil {
				return fmt.Errorf("generate tokens: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pair)
		},
	}

	cmd.Flags().StringSliceVarP(&scopes, "scope", "s", []string{auth.ScopeRead}, "scopes to grant (read, write)")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	return cmd
}
