package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
// Pesan yang tidak akan pernah sukses (rusak) sebaiknya dilog lalu return nil.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	defaultAttempts = 5
	defaultBackoff  = 500 * time.Millisecond
	maxBackoff      = 10 * time.Second
)

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger

	// MaxAttempts and Backoff bound the retries of one message. When they
	// run out the consumer stops and the offset stays uncommitted.
	MaxAttempts int
	Backoff     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit sinkron setelah handler sukses
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, log: log, MaxAttempts: defaultAttempts, Backoff: defaultBackoff}
}

// Start blocks until ctx is done, the reader fails, or a message exhausts
// its retries. Offsets are committed only after h succeeds. Each partition
// is pinned to one worker, so messages of a partition are handled and
// committed in offset order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if ctx.Err() != nil {
					continue // sedang berhenti, sisa pesan dikirim ulang nanti
				}
				c.work(ctx, cancel, h, m)
			}
		}(lanes[i])
	}
	defer wg.Wait()
	defer func() {
		for _, l := range lanes {
			close(l)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stopCause(ctx)
			}
			return err
		}
		select {
		case lanes[m.Partition%len(lanes)] <- m:
		case <-ctx.Done():
			return stopCause(ctx)
		}
	}
}

func (c *Consumer) work(ctx context.Context, stop context.CancelCauseFunc, h Handler, m kafka.Message) {
	err := handleWithRetry(ctx, h, m, c.MaxAttempts, c.Backoff, c.log)
	switch {
	case err == nil:
		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			// offset berikutnya di partisi ini ikut meng-cover
			c.log.Error("commit failed", slog.Int64("offset", m.Offset), slog.Any("err", err))
		}
	case ctx.Err() != nil:
		// shutdown di tengah retry; offset tidak di-commit
	default:
		c.log.Error("giving up on message, stopping consumer",
			slog.String("topic", m.Topic), slog.Int("partition", m.Partition),
			slog.Int64("offset", m.Offset), slog.Any("err", err))
		stop(err)
	}
}

// handleWithRetry calls h until it succeeds, ctx ends, or attempts run out.
// The wait doubles after each failure, capped at maxBackoff.
func handleWithRetry(ctx context.Context, h Handler, m kafka.Message, attempts int, backoff time.Duration, log *slog.Logger) error {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	var err error
	for i := 1; ; i++ {
		if err = h(ctx, m); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= attempts {
			return fmt.Errorf("partition %d offset %d after %d attempts: %w", m.Partition, m.Offset, i, err)
		}
		log.Warn("handler failed, retrying",
			slog.String("topic", m.Topic), slog.Int("partition", m.Partition),
			slog.Int64("offset", m.Offset), slog.Int("attempt", i), slog.Any("err", err))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// stopCause hides a plain shutdown and surfaces a worker failure.
func stopCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return nil
	}
	return cause
}
