package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const queryGrantItem = `
	INSERT INTO player_inventory (user_id, item_id, amount, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, item_id)
	DO UPDATE SET
		amount     = player_inventory.amount + EXCLUDED.amount,
		updated_at = EXCLUDED.updated_at
`

// InventoryAdapter implements storage.InventoryStore on PostgreSQL. It is the
// default in-process grant delivery collaborator; deployments with an
// external item service swap it out behind inventory.Granter.
type InventoryAdapter struct {
	db *sql.DB
}

// NewInventoryAdapter creates an InventoryAdapter sharing the given pool.
func NewInventoryAdapter(db *sql.DB) *InventoryAdapter {
	return &InventoryAdapter{db: db}
}

// GrantItem adds amount of itemID to the participant's inventory.
func (a *InventoryAdapter) GrantItem(ctx context.Context, userID int64, itemID int, amount int) error {
	_, err := a.db.ExecContext(ctx, queryGrantItem, userID, itemID, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("grant item (user=%d item=%d amount=%d): %w", userID, itemID, amount, err)
	}
	return nil
}
