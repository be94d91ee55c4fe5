// Package enforcement реализует контроль сроков отгрузки и вычисление уровней доверия продавцов.
package enforcement

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

// ErrEmptySellerUID возвращается при вызове оценки без идентификатора продавца.
var ErrEmptySellerUID = errors.New("seller uid is empty")

// OrderStore описывает доступ к заказам.
type OrderStore interface {
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) error
}

// SellerStore описывает доступ к записям продавцов.
// GetSeller возвращает repository.ErrSellerNotFound, если продавца нет.
type SellerStore interface {
	GetSeller(ctx context.Context, uid string) (*model.Seller, error)
	UpdateSeller(ctx context.Context, uid string, stats model.SellerStats) error
}

// Clock возвращает текущее время.
type Clock interface {
	Now() time.Time
}

// ClockFunc позволяет использовать функцию в качестве Clock.
type ClockFunc func() time.Time

// Now вызывает f.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock возвращает системное время в UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
