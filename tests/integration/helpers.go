package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"courier/internal/logger"
)

const timestampDelay = 10 * time.Millisecond

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createChannelGroup(t *testing.T, db *sql.DB, orgID, name string) string {
	t.Helper()
	var id string
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO digital_channel_groups (org_id, name) VALUES ($1, $2) RETURNING id`,
		orgID, name,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create channel group: %v", err)
	}
	return id
}

func createChannel(t *testing.T, db *sql.DB, groupID, orgID, carrierName, address string, enabled bool) string {
	t.Helper()
	var id string
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO digital_channels (group_id, org_id, carrier, address, enabled)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		groupID, orgID, carrierName, address, enabled,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to create channel: %v", err)
	}
	return id
}

func createPreRoutingRule(t *testing.T, db *sql.DB, orgID, name, expression, variables string, priority int, enabled bool) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO prerouting_rules (org_id, name, expression, variables, priority, enabled)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		orgID, name, expression, variables, priority, enabled,
	)
	if err != nil {
		t.Fatalf("failed to create prerouting rule: %v", err)
	}
}
