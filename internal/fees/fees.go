// Package fees описывает права продавца на типы листингов и комиссии маркетплейса по уровням.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

var (
	// ErrAuctionsNotAllowed возвращается при расчёте аукционного сбора для уровня без аукционов.
	ErrAuctionsNotAllowed = errors.New("auctions are not allowed for seller tier")
	// ErrInvalidPrice возвращается для отрицательной цены.
	ErrInvalidPrice = errors.New("price must not be negative")
)

// Policy описывает условия листинга для уровня продавца.
type Policy struct {
	Tier                  model.Tier      `json:"tier"`
	AuctionsAllowed       bool            `json:"auctionsAllowed"`
	FixedPriceFeeRate     decimal.Decimal `json:"fixedPriceFeeRate"`
	AuctionListingFeeRate decimal.Decimal `json:"auctionListingFeeRate"`
	AuctionMinimumFee     decimal.Decimal `json:"auctionMinimumFee"`
}

var policies = map[model.Tier]Policy{
	model.TierBronze: {
		Tier:              model.TierBronze,
		FixedPriceFeeRate: decimal.RequireFromString("0.10"),
	},
	model.TierSilver: {
		Tier:                  model.TierSilver,
		AuctionsAllowed:       true,
		FixedPriceFeeRate:     decimal.RequireFromString("0.07"),
		AuctionListingFeeRate: decimal.RequireFromString("0.05"),
		AuctionMinimumFee:     decimal.NewFromInt(10),
	},
	model.TierGold: {
		Tier:                  model.TierGold,
		AuctionsAllowed:       true,
		FixedPriceFeeRate:     decimal.RequireFromString("0.05"),
		AuctionListingFeeRate: decimal.RequireFromString("0.02"),
		AuctionMinimumFee:     decimal.NewFromInt(5),
	},
}

// PolicyFor возвращает условия для уровня. Неизвестный или пустой уровень считается BRONZE.
func PolicyFor(tier model.Tier) Policy {
	if p, ok := policies[tier]; ok {
		return p
	}
	return policies[model.TierBronze]
}

// FixedPriceFee возвращает комиссию с продажи по фиксированной цене, округлённую до цента.
func (p Policy) FixedPriceFee(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	return price.Mul(p.FixedPriceFeeRate).Round(2), nil
}

// AuctionListingFee возвращает предоплатный сбор за аукцион от стартовой цены, но не меньше минимума.
func (p Policy) AuctionListingFee(startPrice decimal.Decimal) (decimal.Decimal, error) {
	if !p.AuctionsAllowed {
		return decimal.Zero, ErrAuctionsNotAllowed
	}
	if startPrice.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	fee := startPrice.Mul(p.AuctionListingFeeRate).Round(2)
	return decimal.Max(fee, p.AuctionMinimumFee), nil
}
