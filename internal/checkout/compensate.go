package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tamoykinden/Final-project-auto-purch/internal/domain"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

const compensationTimeout = 5 * time.Second

// Compensation steps run even if the request context is already cancelled.
// Their failures are logged: the original error is what the caller gets.

func (s *Service) deleteOrder(ctx context.Context, orderID uuid.UUID) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.orders.DeleteOrder(cctx, orderID); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("order_id", orderID.String()).Msg("compensation: failed to delete order")
	}
}

func (s *Service) restoreStock(ctx context.Context, lines []domain.StockLine) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.catalog.RestoreStock(cctx, lines); err != nil {
		logger.FromContext(ctx).Error().Err(err).Int("lines", len(lines)).Msg("compensation: failed to restore stock")
	}
}

func (s *Service) restoreCart(ctx context.Context, cart *domain.Cart) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	if err := s.carts.Restore(cctx, cart); err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("buyer_id", cart.BuyerID).Msg("compensation: failed to restore cart")
	}
}
