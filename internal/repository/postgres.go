// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrSellerNotFound возвращается, если запись продавца не найдена.
	ErrSellerNotFound = errors.New("seller not found")
	// ErrOrderNotFound возвращается при обновлении несуществующего заказа.
	ErrOrderNotFound = errors.New("order not found")
)

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository предоставляет доступ к заказам и продавцам в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ListOrders возвращает заказы, удовлетворяющие фильтру. Пустой фильтр возвращает все заказы.
func (r *PostgresRepository) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	query := `SELECT id, seller_uid, buyer_uid, state, created_at, shipped_at,
		        tracking_number, tracking_status, late, dispute_id, chargeback
		 FROM orders`
	var args []any
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, s := range filter.States {
			states = append(states, string(s))
		}
		query += ` WHERE state = ANY($1)`
		args = append(args, states)
	}
	query += ` ORDER BY created_at NULLS LAST, id`

	var orders []model.Order
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrder(rows pgx.Rows) (model.Order, error) {
	var (
		o              model.Order
		buyerUID       *string
		state          string
		trackingNumber *string
		trackingStatus *string
		disputeID      *string
	)
	err := rows.Scan(&o.ID, &o.SellerUID, &buyerUID, &state, &o.CreatedAt, &o.ShippedAt,
		&trackingNumber, &trackingStatus, &o.Late, &disputeID, &o.Chargeback)
	if err != nil {
		return model.Order{}, fmt.Errorf("scan order: %w", err)
	}

	o.State = model.OrderState(state)
	o.BuyerUID = deref(buyerUID)
	o.TrackingNumber = deref(trackingNumber)
	o.TrackingStatus = deref(trackingStatus)
	o.DisputeID = deref(disputeID)

	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// UpdateOrder применяет частичное обновление к заказу.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) error {
	if patch.Late == nil {
		return nil
	}

	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE orders SET late = $2 WHERE id = $1`,
			id, *patch.Late,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil
	})
}

// GetSeller возвращает запись продавца вместе с сохранённой статистикой.
func (r *PostgresRepository) GetSeller(ctx context.Context, uid string) (*model.Seller, error) {
	var seller *model.Seller
	err := r.withRetry(ctx, func() error {
		row := r.pool.QueryRow(ctx,
			`SELECT uid, display_name, seller_tier, on_time_shipping_rate, completed_orders,
			        late_shipments_last_60d, disputes_last_60d, chargebacks_last_60d, last_tier_change
			 FROM sellers WHERE uid = $1`,
			uid,
		)

		var (
			s              model.Seller
			tier           *string
			rate           *float64
			completed      *int
			late           *int
			disputes       *int
			chargebacks    *int
			lastTierChange *time.Time
		)
		err := row.Scan(&s.UID, &s.DisplayName, &tier, &rate, &completed, &late, &disputes, &chargebacks, &lastTierChange)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrSellerNotFound, uid)
			}
			return fmt.Errorf("get seller: %w", err)
		}

		if tier != nil {
			s.Stats = &model.SellerStats{
				Tier:                 model.Tier(*tier),
				OnTimeShippingRate:   derefOr(rate, 0),
				CompletedOrders:      derefOr(completed, 0),
				LateShipmentsLast60d: derefOr(late, 0),
				DisputesLast60d:      derefOr(disputes, 0),
				ChargebacksLast60d:   derefOr(chargebacks, 0),
			}
			if lastTierChange != nil {
				s.Stats.LastTierChange = lastTierChange.UTC()
			}
		}

		seller = &s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return seller, nil
}

func derefOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}

// UpdateSeller перезаписывает статистику и уровень продавца.
func (r *PostgresRepository) UpdateSeller(ctx context.Context, uid string, stats model.SellerStats) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE sellers SET
			    seller_tier = $2,
			    on_time_shipping_rate = $3,
			    completed_orders = $4,
			    late_shipments_last_60d = $5,
			    disputes_last_60d = $6,
			    chargebacks_last_60d = $7,
			    last_tier_change = $8
			 WHERE uid = $1`,
			uid,
			string(stats.Tier),
			stats.OnTimeShippingRate,
			stats.CompletedOrders,
			stats.LateShipmentsLast60d,
			stats.DisputesLast60d,
			stats.ChargebacksLast60d,
			stats.LastTierChange,
		)
		if err != nil {
			return fmt.Errorf("update seller: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrSellerNotFound, uid)
		}
		return nil
	})
}
