package routing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "courier/pkg/errors"
	"courier/pkg/models"
)

type ChannelRepository interface {
	// ResolveChannel finds the administratively created channel for the
	// carrier-bound address and its owning group.
	ResolveChannel(ctx context.Context, orgID, carrierName, address string) (models.ChannelRef, error)
}

type PostgresChannelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) ChannelRepository {
	return &PostgresChannelRepository{db: db}
}

func (r *PostgresChannelRepository) ResolveChannel(ctx context.Context, orgID, carrierName, address string) (models.ChannelRef, error) {
	query := `
		SELECT c.id, c.address, g.id
		FROM digital_channels c
		JOIN digital_channel_groups g ON g.id = c.group_id
		WHERE c.org_id = $1 AND c.carrier = $2 AND c.address = $3 AND c.enabled = true
	`

	var ref models.ChannelRef
	err := r.db.QueryRowContext(ctx, query, orgID, carrierName, address).
		Scan(&ref.ID, &ref.Address, &ref.GroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChannelRef{}, apperrors.ErrRoutingUnresolved.WithDetail("message",
			fmt.Sprintf("no channel for %s/%s address %s", orgID, carrierName, address))
	}
	if err != nil {
		return models.ChannelRef{}, fmt.Errorf("failed to resolve channel: %w", err)
	}
	return ref, nil
}
