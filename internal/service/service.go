// Package service реализует бизнес-логику сервиса контроля уровней продавцов.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/seller-tier-enforcement/internal/enforcement"
	"github.com/mmeshcher/seller-tier-enforcement/internal/fees"
	"github.com/mmeshcher/seller-tier-enforcement/internal/metrics"
	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

// ErrSellerNotEvaluated возвращается, если у продавца ещё нет сохранённой статистики.
var ErrSellerNotEvaluated = errors.New("seller has not been evaluated yet")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	enforcement.OrderStore
	enforcement.SellerStore
	Close() error
}

// TierPublisher доставляет события смены уровня продавца.
type TierPublisher interface {
	Name() string
	PublishTierChanged(ctx context.Context, event model.TierChangedEvent) error
}

// Options содержит необязательные зависимости сервиса.
type Options struct {
	Clock       enforcement.Clock
	Locker      enforcement.Locker
	ScanWorkers int
	Publishers  []TierPublisher
	Logger      *zap.Logger
}

// Service связывает сканер просрочек, оценку продавцов и публикацию событий.
type Service struct {
	repo       Repository
	evaluator  *enforcement.Evaluator
	scanner    *enforcement.Scanner
	publishers []TierPublisher
	logger     *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:       repo,
		publishers: opts.Publishers,
		logger:     logger,
	}
	s.evaluator = enforcement.NewEvaluator(repo, repo, opts.Clock, opts.Locker, logger.Named("evaluator"))
	s.scanner = enforcement.NewScanner(repo, s, opts.Clock, opts.ScanWorkers, logger.Named("scanner"))

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Evaluate пересчитывает уровень продавца и публикует событие, если уровень изменился.
func (s *Service) Evaluate(ctx context.Context, sellerUID string) (*enforcement.Evaluation, error) {
	res, err := s.evaluator.Evaluate(ctx, sellerUID)
	if err != nil {
		metrics.EvaluationFailuresTotal.Inc()
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	metrics.EvaluationsTotal.WithLabelValues(string(res.Stats.Tier)).Inc()

	if res.TierChanged() {
		metrics.TierChangesTotal.WithLabelValues(string(res.Stats.Tier)).Inc()
		s.publishTierChanged(ctx, res)
	}

	return res, nil
}

func (s *Service) publishTierChanged(ctx context.Context, res *enforcement.Evaluation) {
	event := model.TierChangedEvent{
		SellerUID:    res.SellerUID,
		PreviousTier: res.PreviousTier,
		NewTier:      res.Stats.Tier,
		Stats:        res.Stats,
		OccurredAt:   res.Stats.LastTierChange,
	}

	for _, p := range s.publishers {
		if err := p.PublishTierChanged(ctx, event); err != nil {
			s.logger.Warn("publish tier change failed",
				zap.String("publisher", p.Name()),
				zap.String("seller", res.SellerUID),
				zap.Error(err),
			)
		}
	}
}

// RunScan выполняет один прогон сканера просрочек.
func (s *Service) RunScan(ctx context.Context) (*enforcement.ScanReport, error) {
	return s.scanner.Run(ctx)
}

// GetSellerStats возвращает сохранённую статистику продавца.
func (s *Service) GetSellerStats(ctx context.Context, sellerUID string) (*model.SellerStats, error) {
	seller, err := s.repo.GetSeller(ctx, sellerUID)
	if err != nil {
		return nil, err
	}
	if seller.Stats == nil {
		return nil, ErrSellerNotEvaluated
	}
	return seller.Stats, nil
}

// GetListingPolicy возвращает условия листинга для текущего уровня продавца.
// Продавец без оценки получает условия BRONZE.
func (s *Service) GetListingPolicy(ctx context.Context, sellerUID string) (fees.Policy, error) {
	stats, err := s.GetSellerStats(ctx, sellerUID)
	if err != nil {
		if errors.Is(err, ErrSellerNotEvaluated) {
			return fees.PolicyFor(model.TierBronze), nil
		}
		return fees.Policy{}, err
	}
	return fees.PolicyFor(stats.Tier), nil
}

// StartScanSchedule запускает сканер с заданным интервалом до отмены контекста.
// Каждый прогон ограничен timeout; незавершённый прогон повторяется в следующий тик.
func (s *Service) StartScanSchedule(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduledScan(ctx, timeout)
		}
	}
}

func (s *Service) runScheduledScan(ctx context.Context, timeout time.Duration) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := s.scanner.Run(runCtx)
	if err != nil {
		s.logger.Error("scheduled scan failed", zap.String("run_id", report.RunID), zap.Error(err))
		return
	}
	s.logger.Info("scheduled scan completed",
		zap.String("run_id", report.RunID),
		zap.Int("flagged", len(report.FlaggedOrders)),
		zap.Int("sellers", len(report.Sellers)),
	)
}
