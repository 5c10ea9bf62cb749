// Package inventory delivers granted reward items to participant inventories.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stride-lab/project-stride/internal/core/storage"
	"github.com/stride-lab/project-stride/internal/tiers"
)

// Granter delivers reward items. Delivery runs after the grant ledger write;
// implementations must tolerate redelivery of the same items during
// reconciliation.
type Granter interface {
	Grant(ctx context.Context, userID int64, items []tiers.RewardItem) error
}

// Service grants items through the inventory store.
type Service struct {
	store storage.InventoryStore
}

// NewService creates the inventory granter.
func NewService(store storage.InventoryStore) *Service {
	return &Service{store: store}
}

// Grant applies every item stack to the participant's inventory. It stops at
// the first failing item so reconciliation can resume from the ledger record.
func (s *Service) Grant(ctx context.Context, userID int64, items []tiers.RewardItem) error {
	for _, item := range items {
		if err := s.store.GrantItem(ctx, userID, item.ItemID, item.Amount); err != nil {
			return fmt.Errorf("grant item %d x%d to user %d: %w", item.ItemID, item.Amount, userID, err)
		}
		slog.Debug("Granted item", "user_id", userID, "item_id", item.ItemID, "amount", item.Amount)
	}
	return nil
}
