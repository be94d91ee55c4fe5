// Package model содержит доменные сущности сервиса контроля уровней продавцов.
package model

import "time"

// OrderState описывает состояние заказа на маркетплейсе.
type OrderState string

const (
	OrderStatePaid                OrderState = "PAID"
	OrderStateAwaitingFulfillment OrderState = "AWAITING_FULFILLMENT"
	OrderStateShipped             OrderState = "SHIPPED"
	OrderStateDelivered           OrderState = "DELIVERED"
	OrderStateCompleted           OrderState = "COMPLETED"
	OrderStateCancelled           OrderState = "CANCELLED"
)

// OpenOrderStates перечисляет состояния, в которых заказ проверяется на просрочку отгрузки.
var OpenOrderStates = []OrderState{
	OrderStatePaid,
	OrderStateAwaitingFulfillment,
	OrderStateShipped,
}

// IsOpen сообщает, проверяется ли заказ в этом состоянии сканером просрочек.
func (s OrderState) IsOpen() bool {
	for _, open := range OpenOrderStates {
		if s == open {
			return true
		}
	}
	return false
}

// IsCompleted сообщает, считается ли заказ завершённым для статистики продавца.
func (s OrderState) IsCompleted() bool {
	return s == OrderStateDelivered || s == OrderStateCompleted
}

// TrackingStatusLabelCreated обозначает статус перевозчика, при котором этикетка куплена, но посылка не передана.
const TrackingStatusLabelCreated = "LABEL_CREATED"

// Order описывает заказ покупателя у продавца.
type Order struct {
	ID             string
	SellerUID      string
	BuyerUID       string
	State          OrderState
	CreatedAt      *time.Time
	ShippedAt      *time.Time
	TrackingNumber string
	TrackingStatus string
	Late           bool
	DisputeID      string
	Chargeback     bool
}

// HasDispute сообщает, открыт ли по заказу спор.
func (o Order) HasDispute() bool {
	return o.DisputeID != ""
}

// OrderFilter ограничивает выборку заказов. Пустой фильтр означает все заказы.
type OrderFilter struct {
	States []OrderState
}

// Matches проверяет заказ на соответствие фильтру.
func (f OrderFilter) Matches(o Order) bool {
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if o.State == s {
			return true
		}
	}
	return false
}

// OrderPatch описывает частичное обновление заказа. Nil-поля не изменяются.
type OrderPatch struct {
	Late *bool
}

// Tier задаёт уровень доверия продавца.
type Tier string

const (
	TierBronze Tier = "BRONZE"
	TierSilver Tier = "SILVER"
	TierGold   Tier = "GOLD"
)

// SellerStats содержит уровень продавца и статистику, на основании которой он вычислен.
type SellerStats struct {
	Tier                 Tier      `json:"sellerTier"`
	OnTimeShippingRate   float64   `json:"onTimeShippingRate"`
	CompletedOrders      int       `json:"completedOrders"`
	LateShipmentsLast60d int       `json:"lateShipmentsLast60d"`
	DisputesLast60d      int       `json:"disputesLast60d"`
	ChargebacksLast60d   int       `json:"chargebacksLast60d"`
	LastTierChange       time.Time `json:"lastTierChange"`
}

// Seller описывает запись продавца. Stats равен nil, пока продавец ни разу не оценивался.
type Seller struct {
	UID         string
	DisplayName string
	Stats       *SellerStats
}

// TierChangedEvent публикуется, когда пересчёт изменил уровень продавца.
type TierChangedEvent struct {
	SellerUID    string      `json:"sellerUid"`
	PreviousTier Tier        `json:"previousTier,omitempty"`
	NewTier      Tier        `json:"newTier"`
	Stats        SellerStats `json:"stats"`
	OccurredAt   time.Time   `json:"occurredAt"`
}
