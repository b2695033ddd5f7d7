package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/unclebandit/dripleopard-backend/internal/config"
	"github.com/unclebandit/dripleopard-backend/internal/db"
	"github.com/unclebandit/dripleopard-backend/internal/queue"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
	"github.com/unclebandit/dripleopard-backend/internal/service"
)

// The scheduler process runs recurring passes and publishes touch jobs to
// RabbitMQ for cmd/worker instances to execute. Several scheduler processes
// may run side by side: the claim lease keeps them from double-emitting.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	conn, err := db.Open(cfg.DSN())
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}

	q, err := queue.NewAMQPQueue(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer q.Close()

	scheduler := &service.Scheduler{
		CampaignRepo:   &repository.CampaignRepository{DB: conn},
		ContactRepo:    &repository.ContactRepository{DB: conn},
		EnrollmentRepo: &repository.EnrollmentRepository{DB: conn},
		TouchRepo:      &repository.TouchRepository{DB: conn},
		OptOutRepo:     &repository.OptOutRepository{DB: conn},
		CreditRepo:     &repository.CreditRepository{DB: conn},
		Queue:          q,
		Lease:          cfg.ClaimLease,
		Batch:          cfg.SchedulerBatch,
		Workers:        cfg.SchedulerWorkers,
		MaxStale:       time.Duration(cfg.MaxStaleDays) * 24 * time.Hour,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Run(ctx, cfg.SchedulerInterval)
	log.Println("Scheduler stopped")
}
