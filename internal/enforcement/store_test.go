package enforcement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
	"github.com/mmeshcher/seller-tier-enforcement/internal/repository"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return testNow })
}

// ago возвращает момент времени d назад относительно testNow.
func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

type memStore struct {
	mu sync.Mutex

	orders  map[string]model.Order
	sellers map[string]*model.Seller

	sellerWrites []model.SellerStats
	orderWrites  []string

	listErr         error
	getSellerErr    error
	updateSellerErr error
	orderUpdateErrs map[string]error
}

func newMemStore(orders ...model.Order) *memStore {
	s := &memStore{
		orders:          make(map[string]model.Order),
		sellers:         make(map[string]*model.Seller),
		orderUpdateErrs: make(map[string]error),
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) addSeller(uid string, stats *model.SellerStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[uid] = &model.Seller{UID: uid, Stats: stats}
}

func (s *memStore) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	res := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Matches(o) {
			res = append(res, o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *memStore) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.orderUpdateErrs[id]; err != nil {
		return err
	}
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrOrderNotFound, id)
	}
	if patch.Late != nil {
		o.Late = *patch.Late
	}
	s.orders[id] = o
	s.orderWrites = append(s.orderWrites, id)
	return nil
}

func (s *memStore) GetSeller(ctx context.Context, uid string) (*model.Seller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getSellerErr != nil {
		return nil, s.getSellerErr
	}
	seller, ok := s.sellers[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSellerNotFound, uid)
	}
	cp := *seller
	if seller.Stats != nil {
		stats := *seller.Stats
		cp.Stats = &stats
	}
	return &cp, nil
}

func (s *memStore) UpdateSeller(ctx context.Context, uid string, stats model.SellerStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateSellerErr != nil {
		return s.updateSellerErr
	}
	seller, ok := s.sellers[uid]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrSellerNotFound, uid)
	}
	seller.Stats = &stats
	s.sellerWrites = append(s.sellerWrites, stats)
	return nil
}

func (s *memStore) order(id string) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}
