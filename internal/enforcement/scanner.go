package enforcement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/seller-tier-enforcement/internal/metrics"
	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

// ErrScanIncomplete возвращается, если часть заказов или продавцов не удалось обработать.
var ErrScanIncomplete = errors.New("scan completed with failures")

const defaultScanWorkers = 8

// SellerEvaluator пересчитывает уровень одного продавца.
type SellerEvaluator interface {
	Evaluate(ctx context.Context, sellerUID string) (*Evaluation, error)
}

// ScanReport описывает результат одного прогона сканера.
type ScanReport struct {
	RunID              string    `json:"runId"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
	OrdersScanned      int       `json:"ordersScanned"`
	OrdersBreaching    int       `json:"ordersBreaching"`
	FlaggedOrders      []string  `json:"flaggedOrders"`
	Sellers            []string  `json:"sellers"`
	OrderFailures      int       `json:"orderFailures"`
	EvaluationFailures int       `json:"evaluationFailures"`
}

// Scanner находит открытые заказы с нарушением сроков отгрузки,
// помечает их и пересчитывает уровни затронутых продавцов.
type Scanner struct {
	orders    OrderStore
	evaluator SellerEvaluator
	clock     Clock
	workers   int
	logger    *zap.Logger
}

// NewScanner создаёт Scanner. workers ограничивает число параллельных обращений к хранилищу.
func NewScanner(orders OrderStore, evaluator SellerEvaluator, clock Clock, workers int, logger *zap.Logger) *Scanner {
	if clock == nil {
		clock = SystemClock
	}
	if workers <= 0 {
		workers = defaultScanWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		orders:    orders,
		evaluator: evaluator,
		clock:     clock,
		workers:   workers,
		logger:    logger,
	}
}

// Run выполняет один прогон. Ошибка отдельного заказа или продавца не прерывает прогон,
// но делает итоговую ошибку ненулевой (ErrScanIncomplete).
func (s *Scanner) Run(ctx context.Context) (*ScanReport, error) {
	started := time.Now()
	report := &ScanReport{
		RunID:         uuid.NewString(),
		StartedAt:     s.clock.Now(),
		FlaggedOrders: []string{},
		Sellers:       []string{},
	}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		metrics.ScanDuration.Observe(time.Since(started).Seconds())
	}()

	orders, err := s.orders.ListOrders(ctx, model.OrderFilter{States: model.OpenOrderStates})
	if err != nil {
		metrics.ScanRunsTotal.WithLabelValues("failed").Inc()
		return report, fmt.Errorf("list open orders: %w", err)
	}
	report.OrdersScanned = len(orders)

	now := s.clock.Now()
	worklist := s.flagLateOrders(ctx, logger, orders, now, report)
	s.evaluateSellers(ctx, logger, worklist, report)

	report.FinishedAt = s.clock.Now()

	logger.Info("late shipment scan finished",
		zap.Int("scanned", report.OrdersScanned),
		zap.Int("breaching", report.OrdersBreaching),
		zap.Int("flagged", len(report.FlaggedOrders)),
		zap.Int("sellers", len(report.Sellers)),
		zap.Int("order_failures", report.OrderFailures),
		zap.Int("evaluation_failures", report.EvaluationFailures),
	)

	if report.OrderFailures > 0 || report.EvaluationFailures > 0 {
		metrics.ScanRunsTotal.WithLabelValues("partial").Inc()
		return report, fmt.Errorf("%w: %d order updates, %d evaluations",
			ErrScanIncomplete, report.OrderFailures, report.EvaluationFailures)
	}

	metrics.ScanRunsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

// flagLateOrders помечает просроченные заказы и возвращает отсортированный список их продавцов.
// Возвращается только после завершения всех обновлений заказов.
func (s *Scanner) flagLateOrders(ctx context.Context, logger *zap.Logger, orders []model.Order, now time.Time, report *ScanReport) []string {
	var mu sync.Mutex
	sellers := make(map[string]struct{})

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	late := true
	for _, o := range orders {
		if !IsLate(o, now) {
			continue
		}
		report.OrdersBreaching++

		o := o
		g.Go(func() error {
			// Флаг late монотонен: уже помеченный заказ повторно не записывается.
			if !o.Late {
				if err := s.orders.UpdateOrder(ctx, o.ID, model.OrderPatch{Late: &late}); err != nil {
					logger.Error("flag late order failed",
						zap.String("order", o.ID), zap.String("seller", o.SellerUID), zap.Error(err))
					metrics.OrderUpdateFailuresTotal.Inc()

					mu.Lock()
					report.OrderFailures++
					mu.Unlock()
					return nil
				}
				metrics.OrdersFlaggedTotal.Inc()
			}

			mu.Lock()
			defer mu.Unlock()
			if !o.Late {
				report.FlaggedOrders = append(report.FlaggedOrders, o.ID)
			}
			if o.SellerUID != "" {
				sellers[o.SellerUID] = struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.FlaggedOrders)

	worklist := make([]string, 0, len(sellers))
	for uid := range sellers {
		worklist = append(worklist, uid)
	}
	sort.Strings(worklist)
	return worklist
}

func (s *Scanner) evaluateSellers(ctx context.Context, logger *zap.Logger, worklist []string, report *ScanReport) {
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, uid := range worklist {
		uid := uid
		g.Go(func() error {
			_, err := s.evaluator.Evaluate(ctx, uid)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("seller evaluation failed", zap.String("seller", uid), zap.Error(err))
				report.EvaluationFailures++
				return nil
			}
			report.Sellers = append(report.Sellers, uid)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Sellers)
}
