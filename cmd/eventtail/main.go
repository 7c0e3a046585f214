package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/chatrelay/internal/config"
	"github.com/suPer8Hu/chatrelay/internal/logging"
	"github.com/suPer8Hu/chatrelay/internal/store/rabbitmq"
	"go.uber.org/zap"
)

func workerConcurrency() int {
	v := os.Getenv("EVENTTAIL_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RabbitURL == "" {
		return fmt.Errorf("RABBIT_URL is required")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueue(ch, cfg.RabbitQueue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("eventtail started", zap.String("queue", cfg.RabbitQueue), zap.Int("concurrency", concurrency))

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range deliveries {
				if err := handleEvent(wlog, d.Body); err != nil {
					wlog.Warn("bad message", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					wlog.Warn("ack failed", zap.Error(err))
				}
			}
		}(i)
	}

	defer func() {
		close(deliveries)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("eventtail shutting down")
			return nil

		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			deliveries <- d
		}
	}
}

func handleEvent(log *zap.Logger, body []byte) error {
	ev, err := rabbitmq.DecodeEvent(body)
	if err != nil {
		return err
	}
	fields := []zap.Field{
		zap.String("id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("chat", ev.Chat),
		zap.Time("at", ev.At),
	}
	if ev.Role != "" {
		fields = append(fields, zap.String("role", string(ev.Role)))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	log.Info("chat event", fields...)
	return nil
}
