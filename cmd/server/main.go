// Command server runs the ingestion HTTP API (spec §6).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gottino/rmirror-cloud/cmn/config"
	"github.com/gottino/rmirror-cloud/cmn/nlog"
	"github.com/gottino/rmirror-cloud/httpapi"
	"github.com/gottino/rmirror-cloud/ingestion"
	"github.com/gottino/rmirror-cloud/notebookstore"
	"github.com/gottino/rmirror-cloud/objstore"
	"github.com/gottino/rmirror-cloud/ocr"
	"github.com/gottino/rmirror-cloud/pagestore"
	"github.com/gottino/rmirror-cloud/quota"
	"github.com/gottino/rmirror-cloud/storage/postgres"
	"github.com/gottino/rmirror-cloud/syncrecord"
	"github.com/gottino/rmirror-cloud/telemetry"
	"github.com/gottino/rmirror-cloud/workqueue"
)

func main() {
	cfgPath := os.Getenv("RMIRROR_CONFIG")
	cfg := config.Defaults()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			nlog.Fatalf("server: load config: %v", err)
		}
		cfg = loaded
	}
	nlog.Init(nlog.Config{Pretty: cfg.Logging.Pretty, Level: cfg.Logging.Level})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.Postgres.DSN, int32(cfg.Postgres.MaxConns))
	if err != nil {
		nlog.Fatalf("server: open postgres: %v", err)
	}
	defer pool.Close()

	objects, err := objstore.Open(ctx, objstore.Config{Backend: cfg.ObjectStore.Backend, Bucket: cfg.ObjectStore.Bucket})
	if err != nil {
		nlog.Fatalf("server: open object store: %v", err)
	}

	ocrClient := ocr.New(cfg.OCR.Endpoint, cfg.OCR.APIKey, cfg.OCR.Timeout)

	pages := pagestore.NewPostgres(pool)
	notebooks := notebookstore.NewPostgres(pool)
	ledger := quota.NewPostgres(pool)
	records := syncrecord.NewPostgres(pool)
	queue := workqueue.NewPostgres(pool)

	ingestionSvc := ingestion.New(pages, notebooks, ledger, objects, ocrClient, queue)

	srv := &httpapi.Server{
		Tokens:    httpapi.NewTokenIssuer([]byte(cfg.Secrets.JWTSigningKey)),
		Ingestion: ingestionSvc,
		Quota:     ledger,
		Pages:     pages,
		Notebooks: notebooks,
		Records:   records,
		Queue:     queue,
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv.Router())
	mux.Handle("/metrics", telemetry.Handler())

	httpSrv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.DestTimeout)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	nlog.Infof("server: listening on %s", cfg.HTTP.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		nlog.Fatalf("server: %v", err)
	}
}
