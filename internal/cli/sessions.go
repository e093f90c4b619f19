package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bff-service/internal/logger"
	"bff-service/internal/redis"
	"bff-service/internal/session"
)

func newSessionsCommand(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain the Redis session store",
	}
	cmd.PersistentFlags().StringVar(&s.RedisAddr, "redis-addr", s.RedisAddr, "Redis address (default $REDIS_ADDR)")
	cmd.PersistentFlags().IntVar(&s.RedisDB, "redis-db", s.RedisDB, "Redis database")

	cmd.AddCommand(newSessionsSweepCommand(s), newSessionsRevokeCommand(s))
	return cmd
}

func openStore(cmd *cobra.Command, s *settings) (*session.RedisStore, func(), error) {
	client, err := redis.New(cmd.Context(), s.RedisAddr, s.RedisPassword, s.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return session.NewRedisStore(client.Client), func() { _ = client.Close() }, nil
}

func newSessionsSweepCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Drop index entries of expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openStore(cmd, s)
			if err != nil {
				return err
			}
			defer closeFn()

			removed, err := store.SweepExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			logger.Ctx(cmd.Context()).Info().Int("removed", removed).Msg("sweep finished")

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired session(s)\n", removed)
			return err
		},
	}
}

func newSessionsRevokeCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <identity-id>",
		Short: "Delete every session owned by an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := openStore(cmd, s)
			if err != nil {
				return err
			}
			defer closeFn()

			revoked, err := store.DeleteAllForOwner(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("revoke failed: %w", err)
			}

			if !revoked {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "no sessions found for %s\n", args[0])
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked all sessions for %s\n", args[0])
			return err
		},
	}
}
