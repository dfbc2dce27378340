package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/safar/storefront/internal/models"
)

var tracer = otel.Tracer("storefront/events")

type OrderPlacedItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlaced struct {
	OrderID    int64             `json:"order_id"`
	CustomerID int64             `json:"customer_id"`
	UserID     int64             `json:"user_id"`
	Items      []OrderPlacedItem `json:"items"`
	Total      decimal.Decimal   `json:"total"`
	PlacedAt   time.Time         `json:"placed_at"`
}

func NewOrderPlaced(userID int64, order *models.Order) OrderPlaced {
	event := OrderPlaced{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		UserID:     userID,
		Items:      make([]OrderPlacedItem, 0, len(order.Items)),
		Total:      decimal.Zero,
		PlacedAt:   order.PlacedAt,
	}

	for _, item := range order.Items {
		event.Items = append(event.Items, OrderPlacedItem{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
		event.Total = event.Total.Add(models.LineTotal(item.UnitPrice, item.Quantity))
	}

	return event
}

type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
		},
	}
}

// PublishOrderPlaced writes the event keyed by order id, so all events for
// one order land on the same partition.
func (p *Producer) PublishOrderPlaced(ctx context.Context, event OrderPlaced) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}

	key := strconv.FormatInt(event.OrderID, 10)
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	ctx, span := tracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish order placed event: %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
