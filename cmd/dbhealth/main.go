package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/gvb-ingest/internal/common"
	repo "github.com/joseph-ayodele/gvb-ingest/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	local := flag.Bool("local", false, "use the local database profile")
	flag.Parse()

	profile := ""
	if *local {
		profile = common.ProfileLocal
	}
	cfg, err := common.LoadConfig(*configPath, profile)
	if err != nil {
		log.Println("ERROR: loading config:", err)
		log.Println("  set GVB_DATABASE_HOST, GVB_DATABASE_NAME, GVB_DATABASE_USERNAME and GVB_DATABASE_PASSWORD")
		log.Println("  or GVB_DATABASE_DSN, or pass -config gvb.yaml")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbCfg := repo.ConfigFrom(cfg.Database)
	dbCfg.ConnectRetries = 1
	db, err := repo.Open(ctx, dbCfg, nil)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: closing DB: %v", err)
		}
	}()

	if err := db.HealthCheck(ctx, 1*time.Second); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Println("DB health: OK")

	ledger := repo.NewJobLedger(db, nil)
	sum, err := ledger.Summary(ctx)
	if err != nil {
		log.Printf("ledger: not readable (%v); run `gvb-ingest migrate`", err)
		return
	}
	log.Printf("jobs: %d (finished %d, unfinished %d)", sum.Total, sum.Finished, sum.Unfinished)
	for _, d := range sum.Duplicates {
		log.Printf("- duplicate completion: %s x%d", d.FileName, d.Count)
	}
}
