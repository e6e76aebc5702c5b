package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwtmw "stockwatcher/internal/platform/jwt"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token signed with JWT_SECRET",
	Long: `Issue an admin bearer token for the /admin endpoints.

Example:
  stockwatcher token --subject ops --ttl 12h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.HTTP.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		token, err := jwtmw.NewGenerator(cfg.HTTP.JWTSecret, tokenTTL).GenerateToken(tokenSubject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin",
		"token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour,
		"token lifetime")
}
