// Package events publishes committed money movements to a RabbitMQ topic exchange.
package events

import (
    "context"
    "encoding/json"
    "fmt"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/tinoosan/banking/internal/ledger"
)

// Config locates the broker and names where messages go.
type Config struct {
    URL           string
    Exchange      string
    RoutingPrefix string
}

// Message is the JSON body published for each committed transaction.
type Message struct {
    Reference      string    `json:"reference"`
    TransactionID  int64     `json:"transaction_id"`
    Type           string    `json:"transaction_type"`
    AccountID      int64     `json:"account_id"`
    CounterpartyID int64     `json:"counterparty_id,omitempty"`
    Amount         string    `json:"amount"`
    AmountMinor    int64     `json:"amount_minor"`
    Currency       string    `json:"currency"`
    Timestamp      time.Time `json:"timestamp"`
}

// NewMessage maps a transaction to its wire form.
func NewMessage(t ledger.Transaction) Message {
    return Message{
        Reference:      t.Reference.String(),
        TransactionID:  t.ID,
        Type:           string(t.Type),
        AccountID:      t.AccountID,
        CounterpartyID: t.CounterpartyID,
        Amount:         ledger.FormatAmount(t.Amount),
        AmountMinor:    ledger.Minor(t.Amount),
        Currency:       t.Amount.Curr().Code(),
        Timestamp:      t.Timestamp,
    }
}

// RoutingKey returns e.g. "bank.transactions.deposit".
func RoutingKey(prefix string, t ledger.TransactionType) string {
    key := strings.ToLower(string(t))
    if prefix == "" { return key }
    return strings.TrimSuffix(prefix, ".") + "." + key
}

const publishTimeout = 5 * time.Second

// Publisher sends messages over a single channel. Channels are not safe for
// concurrent use, so publishes are serialized.
type Publisher struct {
    mu       sync.Mutex
    conn     *amqp.Connection
    channel  *amqp.Channel
    exchange string
    prefix   string
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(cfg Config) (*Publisher, error) {
    conn, err := amqp.Dial(cfg.URL)
    if err != nil {
        return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
    }
    channel, err := conn.Channel()
    if err != nil {
        conn.Close()
        return nil, fmt.Errorf("failed to open channel: %w", err)
    }
    err = channel.ExchangeDeclare(
        cfg.Exchange, // name
        "topic",      // type
        true,         // durable
        false,        // auto-deleted
        false,        // internal
        false,        // no-wait
        nil,          // arguments
    )
    if err != nil {
        channel.Close()
        conn.Close()
        return nil, fmt.Errorf("failed to declare exchange: %w", err)
    }
    return &Publisher{conn: conn, channel: channel, exchange: cfg.Exchange, prefix: cfg.RoutingPrefix}, nil
}

// Publish implements account.Publisher.
func (p *Publisher) Publish(ctx context.Context, t ledger.Transaction) error {
    body, err := json.Marshal(NewMessage(t))
    if err != nil { return fmt.Errorf("marshal event: %w", err) }
    ctx, cancel := context.WithTimeout(ctx, publishTimeout)
    defer cancel()
    p.mu.Lock()
    defer p.mu.Unlock()
    err = p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(p.prefix, t.Type), false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    t.Reference.String(),
        Timestamp:    t.Timestamp,
        Body:         body,
    })
    if err != nil { return fmt.Errorf("publish %s: %w", t.Reference, err) }
    return nil
}

// Close shuts the channel and connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if err := p.channel.Close(); err != nil { _ = p.conn.Close(); return err }
    return p.conn.Close()
}
