package simulation

import (
	"context"
	"fmt"
)

// MarkActiveSimulationStale flags the user's active simulation as stale.
// It is one conditional update in the store, so concurrent mutations cannot
// lose an invalidation, and it is a no-op when nothing is active or the
// active simulation is already stale. It reports whether a row changed.
func (s *Service) MarkActiveSimulationStale(ctx context.Context, userID string) (bool, error) {
	changed, err := s.store.MarkActiveStale(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("marking active simulation stale: %w", err)
	}
	if changed {
		s.logger.Info("active simulation marked stale", "user_id", userID)
	}
	return changed, nil
}
