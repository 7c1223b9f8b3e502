// README: Entry point; loads config, wires services, starts HTTP server and the sweep loop.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops/internal/config"
	httptransport "fieldops/internal/http"
	"fieldops/internal/infra"
	"fieldops/internal/modules/escalate"
	"fieldops/internal/modules/order"
	"fieldops/internal/modules/presence"
	"fieldops/internal/modules/reconcile"
	"fieldops/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("FIELDOPS_FIREBASE_PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	verifier, err := infra.NewTokenVerifier(ctx, app)
	if err != nil {
		log.Fatalf("firebase auth: %v", err)
	}
	fcm, err := infra.NewMessaging(ctx, app)
	if err != nil {
		log.Fatalf("firebase messaging: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	redisClient := infra.NewRedis(cfg.Redis.Addr)

	orderStore := order.NewPgStore(dbPool)
	orderSvc := order.NewService(orderStore)

	tokenStore := notify.NewPgTokenStore(dbPool)
	dispatcher := notify.NewFCMDispatcher(fcm, tokenStore)

	reconciler := reconcile.NewService(orderStore)

	guard := escalate.NewRedisGuard(
		redisClient,
		time.Duration(cfg.Sweep.LockTTLSeconds)*time.Second,
		time.Duration(cfg.Sweep.ReminderCooldownMinutes)*time.Minute,
	)
	escalator := escalate.NewService(orderStore, dispatcher, guard, cfg.Sweep)

	presenceStore := presence.NewStore(dbPool)
	presenceSvc := presence.NewService(presenceStore, cfg.Presence)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Order:     orderSvc,
		Reconcile: reconciler,
		Escalate:  escalator,
		Presence:  presenceSvc,
		Devices:   tokenStore,
		Verifier:  verifier,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go runSweepLoop(ctx, time.Duration(cfg.Sweep.TickSeconds)*time.Second, reconciler, escalator)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// runSweepLoop owns the periodic trigger. HTTP triggers call the same
// two operations, so overlap with this loop is safe.
func runSweepLoop(ctx context.Context, interval time.Duration, reconciler *reconcile.Service, escalator *escalate.Service) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reconciler.Run(ctx, nil); err != nil {
				log.Printf("sweep: reconcile failed: %v", err)
			}
			if _, err := escalator.Run(ctx); err != nil {
				log.Printf("sweep: escalate failed: %v", err)
			}
		}
	}
}
