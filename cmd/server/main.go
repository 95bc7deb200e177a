package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/booking"
	"github.com/iliyamo/facility-reservation/internal/config"
	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/ratelimit"
	"github.com/iliyamo/facility-reservation/internal/repository"
	"github.com/iliyamo/facility-reservation/internal/router"
	queuepub "github.com/iliyamo/facility-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly

	cfg := config.Load()
	limits := config.LoadRateLimits()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Rate-limit counters live in Redis when available so replicated
	// instances share budgets; otherwise each instance keeps its own map.
	var rlStore ratelimit.Store
	if rdb := config.NewRedisClient(); rdb != nil {
		rlStore = ratelimit.NewRedisStore(rdb, "rl")
		log.Printf("ratelimit: using redis store")
	} else {
		rlStore = ratelimit.NewMemoryStore()
		log.Printf("ratelimit: redis unavailable, using in-process store")
	}

	reservationLim := ratelimit.New("reservation:create", limits.ReservationCreate, rlStore)
	transferCreateLim := ratelimit.New("transfer:create", limits.TransferCreate, rlStore)
	transferRespondLim := ratelimit.New("transfer:respond", limits.TransferRespond, rlStore)
	loginLim := ratelimit.New("auth:login", limits.AuthLogin, rlStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// One janitor sweeps the shared store; every entry is judged by its own
	// window, so a single sweeper serves all four purposes.
	reservationLim.StartJanitor(ctx, limits.ReservationCreate.Window)

	store := repository.NewStore(db)
	users := repository.NewUserRepo(db)
	publisher := queuepub.NewPublisher()

	admission := booking.NewAdmissionService(store, reservationLim, publisher, booking.AdmissionConfig{
		DefaultDailyCapacity: cfg.DefaultDailyCapacity,
		MaxConsecutiveDays:   cfg.MaxConsecutiveDays,
	})
	transfers := booking.NewTransferService(store, transferCreateLim, transferRespondLim, publisher, cfg.TransferTTL)

	// The notification consumer is the stand-in for the external
	// notification collaborator; it reconnects on its own.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users), cfg.JWTSecret, loginLim)
	router.RegisterBooking(e, handler.NewReservationHandler(admission), handler.NewTransferHandler(transfers), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
