package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"harvestbid.org/internal/auction"
	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/chat"
	"harvestbid.org/internal/directory"
	"harvestbid.org/internal/events"
	"harvestbid.org/internal/httpapi"
	"harvestbid.org/internal/obs"
	"harvestbid.org/internal/store/pg"
	"harvestbid.org/internal/stream"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("HARVEST_COMMIT"))

	var (
		core    *auction.Service
		crops   catalog.Store
		users   directory.Store
		probe   httpapi.ReadyProbe
		pgClose func()
	)
	if dsn := os.Getenv("HARVEST_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.Migrate(ctx); err != nil {
			cancel()
			log.Fatalf("migrate: %v", err)
		}
		cancel()
		core = auction.NewService(store, store, store)
		crops, users = store, store
		probe = httpapi.ReadyProbe{DB: store.DB()}
		pgClose = func() { _ = store.Close() }
	} else {
		log.Println("HARVEST_PG_DSN not set, using in-memory stores")
		mem := catalog.NewInMemory()
		msgs := chat.NewInMemory()
		core = auction.NewService(auction.NewMemoryStore(mem, msgs), mem, msgs)
		crops, users = mem, directory.NewInMemory()
	}

	var publisher *events.Publisher
	if url := os.Getenv("HARVEST_NATS_URL"); url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pub, err := events.Connect(ctx, url)
		cancel()
		if err != nil {
			log.Fatalf("connect nats: %v", err)
		}
		publisher = pub
		defer publisher.Close()
	}

	api := httpapi.New(probe, version, core, crops, users, stream.New(), publisher)

	addr := os.Getenv("HARVEST_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// generous write timeout so SSE clients are not cut off immediately
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting harvestbid-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgClose != nil {
		pgClose()
	}
	log.Println("Stopped")
}
