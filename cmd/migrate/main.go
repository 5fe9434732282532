package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"harvestbid.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("HARVEST_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or HARVEST_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	switch flag.Arg(0) {
	case "up":
		err = pg.MigrateUp(ctx, db)
	case "down":
		err = pg.MigrateDown(ctx, db)
	case "status":
		err = pg.MigrationStatus(ctx, db)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
