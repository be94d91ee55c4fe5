package enforcement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
	"github.com/mmeshcher/seller-tier-enforcement/internal/repository"
)

// Evaluation содержит результат пересчёта уровня продавца.
type Evaluation struct {
	SellerUID    string
	PreviousTier model.Tier
	Stats        model.SellerStats
}

// TierChanged сообщает, изменился ли уровень продавца.
func (e Evaluation) TierChanged() bool {
	return e.PreviousTier != e.Stats.Tier
}

// Evaluator вычисляет уровень продавца по истории его заказов и сохраняет результат.
type Evaluator struct {
	orders  OrderStore
	sellers SellerStore
	clock   Clock
	locker  Locker
	logger  *zap.Logger
}

// NewEvaluator создаёт Evaluator. Если locker равен nil, используется KeyedMutex.
func NewEvaluator(orders OrderStore, sellers SellerStore, clock Clock, locker Locker, logger *zap.Logger) *Evaluator {
	if clock == nil {
		clock = SystemClock
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		orders:  orders,
		sellers: sellers,
		clock:   clock,
		locker:  locker,
		logger:  logger,
	}
}

// Evaluate пересчитывает и сохраняет статистику продавца.
// Для несуществующего продавца возвращает nil, nil.
func (e *Evaluator) Evaluate(ctx context.Context, sellerUID string) (*Evaluation, error) {
	if sellerUID == "" {
		return nil, ErrEmptySellerUID
	}

	held, unlock, err := e.locker.Lock(ctx, sellerUID)
	if err != nil {
		return nil, fmt.Errorf("lock seller %s: %w", sellerUID, err)
	}
	defer unlock()

	seller, err := e.sellers.GetSeller(held, sellerUID)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			e.logger.Debug("seller not found, skipping evaluation", zap.String("seller", sellerUID))
			return nil, nil
		}
		return nil, fmt.Errorf("get seller: %w", err)
	}
	if seller == nil {
		return nil, nil
	}

	// Полный просмотр заказов: фильтрация по продавцу выполняется в памяти.
	orders, err := e.orders.ListOrders(held, model.OrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	now := e.clock.Now()
	agg := AggregateOrders(orders, sellerUID, now)

	stats := model.SellerStats{
		Tier:                 DecideTier(agg),
		OnTimeShippingRate:   agg.OnTimeRate(),
		CompletedOrders:      agg.Completed,
		LateShipmentsLast60d: agg.Late,
		DisputesLast60d:      agg.Disputes,
		ChargebacksLast60d:   agg.Chargebacks,
		LastTierChange:       now,
	}

	// Запись без блокировки могла бы перетереть результат параллельной оценки.
	if err := held.Err(); err != nil {
		return nil, fmt.Errorf("seller lock lost: %w", err)
	}
	if err := e.sellers.UpdateSeller(held, sellerUID, stats); err != nil {
		return nil, fmt.Errorf("update seller: %w", err)
	}

	res := &Evaluation{SellerUID: sellerUID, Stats: stats}
	if seller.Stats != nil {
		res.PreviousTier = seller.Stats.Tier
	}

	e.logger.Info("seller tier evaluated",
		zap.String("seller", sellerUID),
		zap.String("tier", string(stats.Tier)),
		zap.String("previous_tier", string(res.PreviousTier)),
		zap.Float64("on_time_rate", stats.OnTimeShippingRate),
		zap.Int("completed", stats.CompletedOrders),
		zap.Int("late", stats.LateShipmentsLast60d),
	)

	return res, nil
}
