package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bff-service/internal/auth"
	"bff-service/internal/db"
)

const refreshUserQuery = `
	UPDATE public.users
	SET email_verified = email_verified OR $2,
	    display_name = $3,
	    picture_url = $4,
	    updated_at = NOW()
	WHERE id = $1
	RETURNING id, email, display_name, picture_url, created_at, updated_at
`

// ErrUnverifiedEmail is returned when an unverified provider email matches
// an existing user. Such a profile can neither be linked nor create a user.
var ErrUnverifiedEmail = errors.New("email not verified by provider")

// DBResolver resolves profiles against the Postgres user directory.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

// Resolve maps (provider, subject) to a user. Unknown subjects are linked
// to an existing user with the same email when the provider verified it,
// or a new user is created.
// The whole lookup runs in one transaction.
func (r *DBResolver) Resolve(ctx context.Context, profile *auth.ProviderProfile) (*auth.Identity, error) {
	if profile == nil {
		return nil, errors.New("resolver: profile is nil")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("resolver: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	identity, err := resolveTx(ctx, tx, profile)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("resolver: commit: %w", err)
	}
	return identity, nil
}

func resolveTx(ctx context.Context, tx *sql.Tx, profile *auth.ProviderProfile) (*auth.Identity, error) {
	// 1. Known identity (provider + provider_user_id)
	var userID uuid.UUID
	err := tx.QueryRowContext(ctx, `
		SELECT user_id
		FROM public.identities
		WHERE provider = $1
		  AND provider_user_id = $2
	`,
		string(profile.Provider),
		profile.Subject,
	).Scan(&userID)

	if err == nil {
		return refreshUser(ctx, tx, userID, profile)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolver: lookup identity: %w", err)
	}

	// 2. Existing user, new provider: link by email
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM public.users
		WHERE LOWER(email) = LOWER($1)
	`,
		profile.Email,
	).Scan(&userID)

	if err == nil {
		if !profile.EmailVerified {
			return nil, fmt.Errorf("resolver: link %s: %w", profile.Provider, ErrUnverifiedEmail)
		}
		if err := linkIdentity(ctx, tx, userID, profile); err != nil {
			return nil, err
		}
		return refreshUser(ctx, tx, userID, profile)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolver: lookup user: %w", err)
	}

	// 3. New user
	identity, err := scanIdentity(tx.QueryRowContext(ctx, `
		INSERT INTO public.users (email, email_verified, display_name, picture_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, display_name, picture_url, created_at, updated_at
	`,
		profile.Email,
		profile.EmailVerified,
		profile.Name,
		profile.Picture,
	), profile.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolver: create user: %w", err)
	}

	if err := linkIdentity(ctx, tx, uuid.MustParse(identity.ID), profile); err != nil {
		return nil, err
	}
	return identity, nil
}

func linkIdentity(ctx context.Context, tx *sql.Tx, userID uuid.UUID, profile *auth.ProviderProfile) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO public.identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
	`,
		userID,
		string(profile.Provider),
		profile.Subject,
	)
	if err != nil {
		return fmt.Errorf("resolver: link identity: %w", err)
	}
	return nil
}

func refreshUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID, profile *auth.ProviderProfile) (*auth.Identity, error) {
	identity, err := scanIdentity(tx.QueryRowContext(ctx, refreshUserQuery,
		userID,
		profile.EmailVerified,
		profile.Name,
		profile.Picture,
	), profile.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolver: refresh user: %w", err)
	}
	return identity, nil
}

func scanIdentity(row *sql.Row, p auth.Provider) (*auth.Identity, error) {
	var (
		id                 uuid.UUID
		identity           auth.Identity
		createdAt, updated time.Time
	)
	if err := row.Scan(&id, &identity.Email, &identity.DisplayName, &identity.PictureURL, &createdAt, &updated); err != nil {
		return nil, err
	}

	identity.ID = id.String()
	identity.Provider = p
	identity.CreatedAt = createdAt
	identity.UpdatedAt = updated
	return &identity, nil
}
