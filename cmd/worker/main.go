package main

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/dripleopard-backend/internal/config"
	"github.com/unclebandit/dripleopard-backend/internal/db"
	"github.com/unclebandit/dripleopard-backend/internal/queue"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
	"github.com/unclebandit/dripleopard-backend/internal/sender"
	"github.com/unclebandit/dripleopard-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}

	executor := &service.Executor{
		CampaignRepo:   &repository.CampaignRepository{DB: conn},
		ContactRepo:    &repository.ContactRepository{DB: conn},
		EnrollmentRepo: &repository.EnrollmentRepository{DB: conn},
		TouchRepo:      &repository.TouchRepository{DB: conn},
		OptOutRepo:     &repository.OptOutRepository{DB: conn},
		CreditRepo:     &repository.CreditRepository{DB: conn},
		Sender:         &sender.MockSender{},
		MaxAttempts:    cfg.TouchMaxAttempts,
	}

	// Connect to RabbitMQ
	mq, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer mq.Close()

	ch, err := mq.Channel()
	if err != nil {
		log.Fatal("Failed to open a channel:", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		queue.TouchSendsTopic, // name
		true,                  // durable
		false,                 // delete when unused
		false,                 // exclusive
		false,                 // no-wait
		nil,                   // arguments
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

	// amqp channels do not tolerate concurrent Publish calls.
	var pubMu sync.Mutex

	go func() {
		for d := range msgs {
			var job queue.TouchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("Invalid job:", err)
				d.Ack(false)
				continue
			}

			err := executor.ExecuteTouch(context.Background(), job.EnrollmentID, job.StepNumber)
			if err != nil {
				// Transient failure: requeue with backoff up to the retry cap.
				// The executor has already bumped the touch's retry_count.
				// The wait happens off the consume loop so one failing job
				// never stalls the rest of the queue.
				var retryCount int
				if v, ok := d.Headers["x-retry-count"].(int32); ok {
					retryCount = int(v)
				}
				if retryCount < cfg.TouchMaxAttempts {
					body := d.Body
					retryLater(backoff(retryCount), func() error {
						pubMu.Lock()
						defer pubMu.Unlock()
						return publishRetry(ch, q.Name, body, retryCount+1)
					})
				}
			}

			d.Ack(false)
		}
	}()

	log.Println("Worker running, waiting for touch jobs...")
	<-forever
}

// retryLater republishes after the backoff delay without blocking the
// caller's consume loop.
func retryLater(delay time.Duration, publish func() error) {
	go func() {
		time.Sleep(delay)
		if err := publish(); err != nil {
			log.Println("Failed to republish job:", err)
		}
	}()
}

// backoff doubles per attempt from a one-minute base.
func backoff(attempt int) time.Duration {
	d := time.Minute
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

func publishRetry(ch *amqp.Channel, queueName string, body []byte, retryCount int) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Headers:     amqp.Table{"x-retry-count": int32(retryCount)},
		},
	)
}
