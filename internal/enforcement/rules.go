package enforcement

import (
	"time"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

const (
	// ShippingSLA задаёт срок, в который заказ должен получить трек-номер.
	ShippingSLA = 48 * time.Hour
	// StuckLabelSLA задаёт срок, после которого этикетка без движения считается просрочкой.
	StuckLabelSLA = 72 * time.Hour
	// LookbackWindow задаёт период, за который агрегируется статистика продавца.
	LookbackWindow = 60 * 24 * time.Hour
)

// Aggregate содержит показатели продавца за период оценки.
type Aggregate struct {
	Completed   int
	OnTime      int
	Late        int
	Disputes    int
	Chargebacks int
}

// OnTimeRate возвращает долю заказов, отправленных в срок, от числа завершённых заказов.
func (a Aggregate) OnTimeRate() float64 {
	if a.Completed == 0 {
		return 0
	}
	rate := float64(a.OnTime) / float64(a.Completed)
	if rate > 1 {
		return 1
	}
	return rate
}

// TierRule связывает условие с уровнем продавца.
type TierRule struct {
	Tier  model.Tier
	Match func(a Aggregate) bool
}

// TierRules проверяются сверху вниз, побеждает первое совпадение.
var TierRules = []TierRule{
	{
		Tier: model.TierGold,
		Match: func(a Aggregate) bool {
			return a.OnTimeRate() >= 0.98 &&
				a.Late == 0 &&
				a.Disputes == 0 &&
				a.Chargebacks == 0 &&
				a.Completed >= 20
		},
	},
	{
		Tier: model.TierSilver,
		Match: func(a Aggregate) bool {
			return a.OnTimeRate() >= 0.90 &&
				a.Late <= 2 &&
				a.Disputes <= 2 &&
				a.Chargebacks == 0
		},
	},
}

// DecideTier возвращает уровень продавца для агрегированных показателей.
func DecideTier(a Aggregate) model.Tier {
	for _, rule := range TierRules {
		if rule.Match(a) {
			return rule.Tier
		}
	}
	return model.TierBronze
}

// AggregateOrders считает показатели продавца по заказам, созданным не ранее now-LookbackWindow.
func AggregateOrders(orders []model.Order, sellerUID string, now time.Time) Aggregate {
	var a Aggregate
	for _, o := range orders {
		if o.SellerUID != sellerUID || o.CreatedAt == nil {
			continue
		}
		if now.Sub(*o.CreatedAt) > LookbackWindow {
			continue
		}

		if o.State.IsCompleted() {
			a.Completed++
		}
		if o.ShippedAt != nil {
			if o.ShippedAt.Sub(*o.CreatedAt) <= ShippingSLA {
				a.OnTime++
			} else {
				a.Late++
			}
		}
		if o.HasDispute() {
			a.Disputes++
		}
		if o.Chargeback {
			a.Chargebacks++
		}
	}
	return a
}

// IsLate сообщает, нарушил ли открытый заказ сроки отгрузки на момент now.
// Заказы без даты создания не проверяются.
func IsLate(o model.Order, now time.Time) bool {
	if !o.State.IsOpen() || o.CreatedAt == nil {
		return false
	}
	age := now.Sub(*o.CreatedAt)

	noTracking := age > ShippingSLA && o.TrackingNumber == ""
	stuckLabel := age > StuckLabelSLA && o.TrackingStatus == model.TrackingStatusLabelCreated

	return noTracking || stuckLabel
}
