package queue

import (
    "context"
    "encoding/json"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/bidmaster/internal/utils"
)

// Publisher sends domain events to RabbitMQ.  Each publish opens its own
// connection, so a broker outage never leaves a broken channel behind;
// errors are logged and returned so callers can ignore them.
type Publisher struct {
    url         string
    dialTimeout time.Duration // bounds TCP connect and the AMQP handshake
}

// NewPublisher returns a Publisher for the broker at url.  Publishing runs
// on the request path, so an unreachable broker costs at most two seconds.
func NewPublisher(url string) *Publisher {
    return &Publisher{url: url, dialTimeout: 2 * time.Second}
}

// dial connects with the publisher's timeout, shortened to the context
// deadline when that comes first.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
    timeout := p.dialTimeout
    if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
        timeout = time.Until(dl)
    }
    if timeout <= 0 {
        return nil, context.DeadlineExceeded
    }
    return amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(timeout),
    })
}

// PublishAuctionClosed publishes ev to the auction.closed queue as a
// persistent JSON message with a fresh message id.
func (p *Publisher) PublishAuctionClosed(ctx context.Context, ev AuctionClosedEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        utils.Error("rabbitmq: marshal event failed", map[string]any{"error": err.Error()})
        return err
    }
    return p.publish(ctx, AuctionClosedQueue, body)
}

func (p *Publisher) publish(ctx context.Context, queueName string, body []byte) error {
    conn, err := p.dial(ctx)
    if err != nil {
        utils.Error("rabbitmq: dial failed", map[string]any{"error": err.Error()})
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        utils.Error("rabbitmq: channel open failed", map[string]any{"error": err.Error()})
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        utils.Error("rabbitmq: queue declare failed", map[string]any{"queue": queueName, "error": err.Error()})
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    uuid.NewString(),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        pub,
    ); err != nil {
        utils.Error("rabbitmq: publish failed", map[string]any{"queue": queueName, "error": err.Error()})
        return err
    }
    return nil
}
