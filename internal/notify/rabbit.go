package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mmeshcher/seller-tier-enforcement/internal/model"
)

// TierExchange задаёт topic-exchange событий об уровнях продавцов.
const TierExchange = "seller_tiers_topic"

// channel описывает часть *amqp.Channel, нужную для публикации.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Close() error
}

// RabbitPublisher публикует события смены уровня в RabbitMQ.
type RabbitPublisher struct {
	conn connection
	ch   channel
}

// NewRabbitPublisher подключается к брокеру и объявляет exchange.
func NewRabbitPublisher(amqpURL string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		TierExchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return newRabbitPublisher(conn, ch), nil
}

func newRabbitPublisher(conn connection, ch channel) *RabbitPublisher {
	return &RabbitPublisher{conn: conn, ch: ch}
}

// Name возвращает имя канала доставки для логов.
func (p *RabbitPublisher) Name() string {
	return "rabbitmq"
}

// RoutingKey строит ключ маршрутизации вида seller.tier.{new}.
func RoutingKey(event model.TierChangedEvent) string {
	return "seller.tier." + strings.ToLower(string(event.NewTier))
}

// PublishTierChanged публикует событие с гарантированной доставкой на диск брокера.
func (p *RabbitPublisher) PublishTierChanged(ctx context.Context, event model.TierChangedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		TierExchange,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			MessageId:    fmt.Sprintf("%s:%d", event.SellerUID, event.OccurredAt.UnixNano()),
		},
	)
	if err != nil {
		return fmt.Errorf("publish tier event: %w", err)
	}

	return nil
}

// Close закрывает канал и соединение.
func (p *RabbitPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return p.conn.Close()
}
