package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FetchProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	query :=
		`SELECT id, name, email, phone, country, role, permissions, joined_date FROM profiles
		 WHERE id = $1
		 `

	var (
		p     models.UserProfile
		role  string
		perms []byte
		since time.Time
	)
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Country, &role, &perms, &since)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	p.Role = models.Role(role)
	if !p.Role.Valid() {
		p.Role = models.RoleUser
	}
	p.Permissions = []string{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &p.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	p.JoinedDate = since.UTC()

	return &p, nil
}

// UpsertProfile inserts the row or updates the client-owned columns. Role,
// permissions and joined_date are left untouched on conflict.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, rec models.ProfileRecord) error {
	query :=
		`INSERT INTO profiles (id, email, name, phone, country)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET email = EXCLUDED.email, name = EXCLUDED.name, phone = EXCLUDED.phone,
		     country = EXCLUDED.country, updated_at = now()
		 `

	if _, err := r.db.ExecContext(ctx, query, rec.ID, rec.Email, rec.Name, rec.Phone, rec.Country); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
