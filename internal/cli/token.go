package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/spacebook/internal/config"
	"github.com/iliyamo/spacebook/internal/model"
	"github.com/iliyamo/spacebook/internal/utils"
)

// newTokenCmd mints an access token signed with JWT_SECRET.  Identity is
// owned upstream; this exists for local runs and operators acting as
// SYSTEM.
func newTokenCmd() *cobra.Command {
	var (
		userID uint64
		role   string
		ttl    int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			switch role {
			case model.RoleGuest, model.RoleHost, model.RoleSystem:
			default:
				return fmt.Errorf("invalid role %q", role)
			}
			if ttl <= 0 {
				ttl = cfg.AccessTTLMin
			}
			tok, err := utils.NewAccessToken(cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "subject user id")
	cmd.Flags().StringVar(&role, "role", model.RoleGuest, "GUEST, HOST or SYSTEM")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
