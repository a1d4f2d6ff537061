package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/bidmaster/internal/utils"
)

// LedgerFile is the file, inside the ledger directory, that receives one
// line per closed auction.
const LedgerFile = "escrow.log"

// StartEscrowConsumer consumes the auction.closed queue and appends every
// event to dir/escrow.log.  It reconnects with exponential backoff and
// returns only when ctx is cancelled.  Malformed messages are rejected
// without requeueing.
func StartEscrowConsumer(ctx context.Context, url, dir string) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            utils.Warn("escrow-consumer: failed to dial broker", map[string]any{"error": err.Error(), "retry_in": backoff.String()})
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, dir)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        utils.Warn("escrow-consumer: consume loop ended, reconnecting", map[string]any{"error": fmt.Sprint(err)})
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        utils.Warn("escrow-consumer: set QoS failed", map[string]any{"error": err.Error()})
    }
    if _, err := ch.QueueDeclare(AuctionClosedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(AuctionClosedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(dir, d.Body); err != nil {
                utils.Error("escrow-consumer: handle message failed", map[string]any{"error": err.Error()})
                _ = d.Nack(false, false) // do not requeue, avoids tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(dir string, body []byte) error {
    var ev AuctionClosedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.AuctionID == 0 {
        return errors.New("event without auction_id")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, LedgerFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open ledger: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(ledgerLine(ev)); err != nil {
        return fmt.Errorf("write ledger: %w", err)
    }
    return nil
}

func ledgerLine(ev AuctionClosedEvent) string {
    if ev.WinnerID == nil {
        return fmt.Sprintf("[%s] Auction closed without bids | auction_id=%d | item_id=%d | reason=%s\n",
            ev.ClosedAt, ev.AuctionID, ev.ItemID, ev.Reason)
    }
    escrow := "-"
    if ev.EscrowID != nil {
        escrow = fmt.Sprint(*ev.EscrowID)
    }
    return fmt.Sprintf("[%s] Funds held in escrow | auction_id=%d | item_id=%d | winner_id=%d | amount=%s | escrow_id=%s | reason=%s\n",
        ev.ClosedAt, ev.AuctionID, ev.ItemID, *ev.WinnerID, ev.Amount, escrow, ev.Reason)
}
