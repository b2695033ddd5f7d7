package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/dripleopard-backend/internal/config"
	"github.com/unclebandit/dripleopard-backend/internal/controller"
	"github.com/unclebandit/dripleopard-backend/internal/db"
	"github.com/unclebandit/dripleopard-backend/internal/middleware"
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

	campaignRepo := &repository.CampaignRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	enrollmentRepo := &repository.EnrollmentRepository{DB: conn}
	touchRepo := &repository.TouchRepository{DB: conn}
	creditRepo := &repository.CreditRepository{DB: conn}
	optOutRepo := &repository.OptOutRepository{DB: conn}

	// Single-process mode: touch jobs run on the in-memory queue. Point
	// AMQP_URL at RabbitMQ and run cmd/scheduler + cmd/worker to scale out.
	q := queue.NewInMemoryQueue()

	executor := &service.Executor{
		CampaignRepo:   campaignRepo,
		ContactRepo:    contactRepo,
		EnrollmentRepo: enrollmentRepo,
		TouchRepo:      touchRepo,
		OptOutRepo:     optOutRepo,
		CreditRepo:     creditRepo,
		Sender:         &sender.MockSender{},
		MaxAttempts:    cfg.TouchMaxAttempts,
	}
	q.Subscribe(queue.TouchSendsTopic, func(payload any) error {
		job, ok := payload.(queue.TouchJob)
		if !ok {
			log.Println("⚠️ invalid touch job payload")
			return nil
		}
		return executor.ExecuteTouch(context.Background(), job.EnrollmentID, job.StepNumber)
	})

	scheduler := &service.Scheduler{
		CampaignRepo:   campaignRepo,
		ContactRepo:    contactRepo,
		EnrollmentRepo: enrollmentRepo,
		TouchRepo:      touchRepo,
		OptOutRepo:     optOutRepo,
		CreditRepo:     creditRepo,
		Queue:          q,
		Lease:          cfg.ClaimLease,
		Batch:          cfg.SchedulerBatch,
		Workers:        cfg.SchedulerWorkers,
		MaxStale:       time.Duration(cfg.MaxStaleDays) * 24 * time.Hour,
	}
	go scheduler.Run(context.Background(), cfg.SchedulerInterval)

	campaignService := &service.CampaignService{CampaignRepo: campaignRepo}
	enrollmentService := &service.EnrollmentService{
		CampaignRepo:   campaignRepo,
		ContactRepo:    contactRepo,
		EnrollmentRepo: enrollmentRepo,
		TouchRepo:      touchRepo,
	}
	creditService := &service.CreditService{CreditRepo: creditRepo}
	ingestor := &service.Ingestor{
		CampaignRepo:   campaignRepo,
		ContactRepo:    contactRepo,
		EnrollmentRepo: enrollmentRepo,
		TouchRepo:      touchRepo,
		OptOutRepo:     optOutRepo,
	}

	campaignController := &controller.CampaignController{CampaignService: campaignService}
	enrollmentController := &controller.EnrollmentController{EnrollmentService: enrollmentService}
	creditController := &controller.CreditController{CreditService: creditService}
	webhookController := &controller.WebhookController{Ingestor: ingestor}

	r := chi.NewRouter()

	// Provider callbacks: no actor auth, providers sign out of band
	r.Post("/webhooks/delivery", webhookController.DeliveryWebhook)
	r.Post("/webhooks/inbound", webhookController.InboundWebhook)
	r.Post("/optouts", webhookController.RegisterOptOut)
	r.Post("/optins", webhookController.RegisterOptIn)

	// Command surface for the presentation layer
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Post("/campaigns", campaignController.CreateCampaign)
		r.Get("/campaigns", campaignController.ListCampaigns)
		r.Get("/campaigns/{id}", campaignController.GetCampaignDetails)
		r.Patch("/campaigns/{id}", campaignController.UpdateCampaign)
		r.Delete("/campaigns/{id}", campaignController.DeleteCampaign)

		r.Post("/campaigns/{id}/steps", campaignController.CreateStep)
		r.Patch("/campaigns/{id}/steps/{step}", campaignController.UpdateStep)
		r.Delete("/campaigns/{id}/steps/{step}", campaignController.DeleteStep)

		r.Post("/campaigns/{id}/enroll", enrollmentController.EnrollContacts)
		r.Get("/campaigns/{id}/enrollments", enrollmentController.ListEnrollments)
		r.Get("/enrollments/{id}", enrollmentController.GetEnrollment)
		r.Post("/enrollments/{id}/pause", enrollmentController.PauseEnrollment)
		r.Post("/enrollments/{id}/resume", enrollmentController.ResumeEnrollment)
		r.Delete("/enrollments/{id}", enrollmentController.RemoveEnrollment)

		r.Get("/credits/balance", creditController.GetBalance)
		r.Get("/credits/packages", creditController.ListPackages)
		r.Post("/credits/purchase", creditController.PurchaseCredits)
		r.Post("/credits/refund", creditController.RefundCredits)
	})

	log.Println("🚀 Server running on", cfg.HTTPAddr)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
