// AngelaMos | 2026
// token.go

package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/viralforge/forge/internal/auth"
	"github.com/viralforge/forge/internal/middleware"
)

var (
	tokenUser  string
	tokenEmail string
	tokenPlan  string
	tokenRole  string
)

// tokenCmd mints access tokens signed with the configured secret, for local
// testing against a running server.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.IsProduction() {
			return errors.New("refusing to mint tokens in production")
		}

		jwtManager, err := auth.NewJWTManager(cfg.JWT)
		if err != nil {
			return err
		}

		if tokenUser == "" {
			tokenUser = uuid.NewString()
		}

		token, err := jwtManager.CreateAccessToken(auth.AccessTokenClaims{
			UserID: tokenUser,
			Email:  tokenEmail,
			Role:   tokenRole,
			Plan:   tokenPlan,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenUser, "user", "", "user id (a random uuid when empty)")
	f.StringVar(&tokenEmail, "email", "dev@viralforge.local", "email claim")
	f.StringVar(&tokenPlan, "plan", "free", "plan claim used for request rate tiers")
	f.StringVar(&tokenRole, "role", middleware.RoleUser, "role claim (user or admin)")
}
