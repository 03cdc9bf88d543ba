// Publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures
// without interrupting the main request flow.
package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

const (
    bidAcceptedQueueName    = "auction.bid_accepted"
    auctionSettledQueueName = "auction.settled"
)

// Publisher publishes auction events to RabbitMQ. It is an explicitly
// constructed, injectable instance rather than a hidden package-level
// singleton; services receive it via their constructors.
type Publisher struct {
    url string
}

// NewPublisher returns a Publisher that dials the given AMQP URL for
// each publish. Connections are short-lived so a broker restart never
// wedges the request path.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// PublishBidAccepted publishes a BidAcceptedEvent to the
// auction.bid_accepted queue.
func (p *Publisher) PublishBidAccepted(ctx context.Context, ev BidAcceptedEvent) error {
    return p.publish(ctx, bidAcceptedQueueName, ev)
}

// PublishAuctionSettled publishes an AuctionSettledEvent to the
// auction.settled queue.
func (p *Publisher) PublishAuctionSettled(ctx context.Context, ev AuctionSettledEvent) error {
    return p.publish(ctx, auctionSettledQueueName, ev)
}

// publish marshals the event and delivers it to the named durable
// queue. The function attempts to be robust and to never panic; any
// error is logged and returned so the caller can choose to ignore it.
// Messages are marked as persistent.
func (p *Publisher) publish(ctx context.Context, queueName string, event any) error {
    conn, err := amqp.Dial(p.url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
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
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }

    return nil
}
