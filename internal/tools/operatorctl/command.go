// Package operatorctl implements the administrative CLI for platform operator grants.
package operatorctl

import (
	"context"
	"fmt"
	"time"

	"github.com/bizops/backend/internal/application/operator"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// OpenFunc builds the operator service; the returned func releases its resources.
type OpenFunc func(ctx context.Context) (*operator.Service, func(), error)

// NewRootCommand builds the operatorctl command tree
func NewRootCommand(open OpenFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "operatorctl",
		Short:         "Grant and revoke platform operator access",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newGrantCommand(open), newRevokeCommand(open), newStatusCommand(open))
	return cmd
}

func newGrantCommand(open OpenFunc) *cobra.Command {
	var grantedBy string
	cmd := &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Make a user a platform operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			var by *uuid.UUID
			if grantedBy != "" {
				id, err := parseUserID(grantedBy)
				if err != nil {
					return fmt.Errorf("--granted-by: %w", err)
				}
				by = &id
			}

			return withService(cmd, open, func(svc *operator.Service) error {
				op, err := svc.Grant(cmd.Context(), userID, by)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "granted %s at %s\n", op.UserID, op.GrantedAt.Format(time.RFC3339))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&grantedBy, "granted-by", "", "user id of the administrator making the grant")
	return cmd
}

func newRevokeCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "End a user's operator grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, open, func(svc *operator.Service) error {
				if err := svc.Revoke(cmd.Context(), userID); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", userID)
				return err
			})
		},
	}
}

func newStatusCommand(open OpenFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show a user's operator grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, open, func(svc *operator.Service) error {
				op, active, err := svc.Status(cmd.Context(), userID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				state := "active"
				if !active {
					state = "revoked"
				}
				if _, err := fmt.Fprintf(w, "%s %s granted_at=%s\n", op.UserID, state, op.GrantedAt.Format(time.RFC3339)); err != nil {
					return err
				}
				if op.RevokedAt != nil {
					_, err = fmt.Fprintf(w, "revoked_at=%s\n", op.RevokedAt.Format(time.RFC3339))
				}
				return err
			})
		},
	}
}

func withService(cmd *cobra.Command, open OpenFunc, fn func(*operator.Service) error) error {
	svc, release, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer release()
	return fn(svc)
}

func parseUserID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}
