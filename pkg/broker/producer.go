package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type Producer struct {
	l                   *slog.Logger
	w                   *kafka.Writer
	invoiceCreatedTopic string
}

func NewProducer(l *slog.Logger, brokers []string, topic string) *Producer {
	l = l.WithGroup("kafka").With("topic", topic)

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		Async:                  true,
		Logger:                 &infoLogger{l: l},
		ErrorLogger:            &errorLogger{l: l},
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		l:                   l,
		w:                   w,
		invoiceCreatedTopic: topic,
	}
}

type InvoiceCreatedEvent struct {
	InvoiceID   int64           `json:"invoice_id"`
	ClientID    int64           `json:"client_id"`
	ClientEmail string          `json:"client_email"`
	Date        string          `json:"date"`
	Total       decimal.Decimal `json:"total"`
}

func NewInvoiceCreatedEvent(invoiceID, clientID int64, clientEmail string, date time.Time, total decimal.Decimal) InvoiceCreatedEvent {
	return InvoiceCreatedEvent{
		InvoiceID:   invoiceID,
		ClientID:    clientID,
		ClientEmail: clientEmail,
		Date:        date.Format(time.DateOnly),
		Total:       total,
	}
}

// SendInvoiceCreated publishes the event without waiting for the broker. Failures are only logged.
func (p *Producer) SendInvoiceCreated(
	ctx context.Context,
	invoiceID, clientID int64,
	clientEmail string,
	date time.Time,
	total decimal.Decimal,
) {
	event := NewInvoiceCreatedEvent(invoiceID, clientID, clientEmail, date, total)

	b, err := json.Marshal(event)
	if err != nil {
		p.l.ErrorContext(ctx, fmt.Sprintf("marshal event: %s", err))
		return
	}

	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(invoiceID, 10)),
		Value: b,
		Topic: p.invoiceCreatedTopic,
	})
	if err != nil {
		p.l.ErrorContext(ctx, fmt.Sprintf("write kafka message: %s", err))
		return
	}
}

func (p *Producer) Close() {
	err := p.w.Close()
	if err != nil {
		p.l.Error(fmt.Sprintf("close kafka writer: %s", err))
	}
}

// NopProducer is wired when no brokers are configured.
type NopProducer struct{}

func (NopProducer) SendInvoiceCreated(context.Context, int64, int64, string, time.Time, decimal.Decimal) {}

func (NopProducer) Close() {}

type infoLogger struct {
	l *slog.Logger
}

func (l *infoLogger) Printf(format string, v ...any) {
	l.l.Info(fmt.Sprintf(format, v...))
}

type errorLogger struct {
	l *slog.Logger
}

func (l *errorLogger) Printf(format string, v ...any) {
	l.l.Error(fmt.Sprintf(format, v...))
}
