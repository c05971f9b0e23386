package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"

	_ "github.com/lib/pq"
	redislib "github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/unclebandit/smsleopard-dispatch/internal/config"
	appErrors "github.com/unclebandit/smsleopard-dispatch/internal/errors"
	"github.com/unclebandit/smsleopard-dispatch/internal/model"
	"github.com/unclebandit/smsleopard-dispatch/internal/queue"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Connect to DB
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}

	jobRepo := &repository.JobRepository{DB: db}

	rdb := redislib.NewClient(&redislib.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	logStore := queue.NewRedisLogStore(rdb)

	// Connect to RabbitMQ
	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("Failed to open a channel:", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		cfg.AMQP.Queue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		log.Fatal("Failed to declare queue:", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var payload model.DeliveryPayload
			if err := json.Unmarshal(d.Body, &payload); err != nil {
				log.Println("Invalid job:", err)
				d.Ack(false)
				continue
			}

			err := deliver(payload)
			if err != nil {
				log.Printf("Failed to deliver job %s: %v", payload.JobID, err)

				// One redelivery attempt, then give up; requeued messages
				// keep their headers so a counter would never advance.
				if !d.Redelivered {
					d.Nack(false, true) // requeue
					continue
				}

				// Permanent failure. The queue keeps no structured failure
				// data, so write the legacy free-text lines to the parent's
				// log; the reconciliation engine reads them back later.
				recordFailure(logStore, jobRepo, payload, err)
			} else {
				if uerr := jobRepo.UpdateStatus(context.Background(), payload.JobID, model.JobStatusSent); uerr != nil {
					log.Println("Failed to update job status:", uerr)
				}
			}

			d.Ack(false)
		}
	}()

	log.Println("Worker running, waiting for messages...")
	<-forever
}

func recordFailure(logStore queue.LogStore, jobRepo *repository.JobRepository, payload model.DeliveryPayload, cause error) {
	ctx := context.Background()

	if err := jobRepo.UpdateStatus(ctx, payload.JobID, model.JobStatusFailed); err != nil {
		log.Println("Failed to update job status:", err)
	}

	// One per-line entry per failure. The batch-level "Failed contacts:"
	// dump was only ever written by the legacy batch workers; emitting one
	// per message would shadow later failures at reconciliation time.
	line := fmt.Sprintf("failed email: %s - reason: %s", payload.Email, cause.Error())

	if err := logStore.Append(ctx, payload.ParentJobID.String(), line); err != nil {
		log.Println("Failed to append failure log:", err)
	}
}

var knownChannels = map[string]bool{
	"email": true,
	"sms":   true,
}

// deliver hands the job to the channel adapter. Mocked for now: 90% success.
func deliver(payload model.DeliveryPayload) error {
	if !knownChannels[payload.Channel] {
		return appErrors.NewUnknownChannel(payload.Channel)
	}
	if rand.Intn(100) < 90 {
		return nil
	}
	return fmt.Errorf("mock send failed")
}
