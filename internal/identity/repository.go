package identity

import (
	"context"
	"database/sql"
	"fmt"

	"courier/pkg/models"
)

type Repository interface {
	GetOrCreate(ctx context.Context, orgID, carrierName, address, displayName string) (models.IdentityRef, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// GetOrCreate upserts on the (org_id, carrier, address) unique key. The
// display name is only written on first sight; later deliveries never rename
// an existing contact.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, orgID, carrierName, address, displayName string) (models.IdentityRef, error) {
	query := `
		INSERT INTO identities (org_id, carrier, address, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, carrier, address)
		DO UPDATE SET updated_at = now()
		RETURNING id, address, display_name
	`

	var ref models.IdentityRef
	var storedName sql.NullString
	err := r.db.QueryRowContext(ctx, query, orgID, carrierName, address, displayName).
		Scan(&ref.ID, &ref.Address, &storedName)
	if err != nil {
		return models.IdentityRef{}, fmt.Errorf("failed to upsert identity: %w", err)
	}
	ref.DisplayName = storedName.String
	return ref, nil
}
