// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/unclebandit/smsleopard-dispatch/internal/config"
	"github.com/unclebandit/smsleopard-dispatch/internal/controller"
	"github.com/unclebandit/smsleopard-dispatch/internal/db"
	"github.com/unclebandit/smsleopard-dispatch/internal/handler"
	"github.com/unclebandit/smsleopard-dispatch/internal/queue"
	"github.com/unclebandit/smsleopard-dispatch/internal/repository"
	"github.com/unclebandit/smsleopard-dispatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Init DB
	db.Init(cfg.Database.DSN())

	// Broker + log store
	conn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer conn.Close()

	enqueuer, err := queue.NewAMQPEnqueuer(conn, cfg.AMQP.Queue)
	if err != nil {
		log.Fatal("Failed to set up enqueuer:", err)
	}
	defer enqueuer.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	logStore := queue.NewRedisLogStore(rdb)

	contactRepo := &repository.ContactRepository{DB: db.DB}
	subscriptionRepo := &repository.SubscriptionRepository{DB: db.DB}
	jobRepo := &repository.JobRepository{DB: db.DB}

	dispatchService := &service.DispatchService{
		Resolver: &service.TargetResolver{
			ContactRepo:   contactRepo,
			LookupTimeout: cfg.Dispatch.LookupTimeout(),
		},
		Expander: &service.FanOutExpander{
			JobRepo:        jobRepo,
			Queue:          enqueuer,
			QueueName:      cfg.AMQP.Queue,
			Workers:        cfg.Dispatch.EnqueueWorkers,
			EnqueueTimeout: cfg.Dispatch.EnqueueTimeout(),
		},
		Reconciler: &service.ReconcileEngine{
			Logs:         logStore,
			FetchTimeout: cfg.Dispatch.LogFetchTimeout(),
			Workers:      cfg.Dispatch.ReconcileWorkers,
		},
		JobRepo: jobRepo,
		Logs:    logStore,
	}

	subscriptionService := &service.SubscriptionService{
		SubscriptionRepo: subscriptionRepo,
	}

	dispatchController := &controller.DispatchController{
		DispatchService: dispatchService,
	}

	subscriptionHandler := &handler.SubscriptionHandler{
		Service: subscriptionService,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	// Dispatch routes
	r.Post("/dispatch", dispatchController.Dispatch)
	r.Get("/jobs", dispatchController.ListJobs)
	r.Get("/jobs/{id}", dispatchController.GetJob)

	// Subscription routes
	r.Post("/subscriptions/activate", subscriptionHandler.Activate)
	r.Post("/subscriptions/deactivate", subscriptionHandler.Deactivate)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Println("🚀 Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
