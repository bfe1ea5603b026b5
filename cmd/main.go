package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/vicentsargues/FACTURAFACIL/internal/api"
	"github.com/vicentsargues/FACTURAFACIL/internal/clients/logo"
	"github.com/vicentsargues/FACTURAFACIL/internal/clients/mailer"
	"github.com/vicentsargues/FACTURAFACIL/internal/docstore"
	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/internal/pdf"
	"github.com/vicentsargues/FACTURAFACIL/internal/repository"
	"github.com/vicentsargues/FACTURAFACIL/internal/service"
	"github.com/vicentsargues/FACTURAFACIL/pkg/broker"
	"github.com/vicentsargues/FACTURAFACIL/pkg/config"
	"github.com/vicentsargues/FACTURAFACIL/pkg/job"
	"github.com/vicentsargues/FACTURAFACIL/pkg/logger"
	"github.com/vicentsargues/FACTURAFACIL/pkg/postgres"
)

const (
	ReadTimeout  = 5 * time.Second
	WriteTimeout = 30 * time.Second
)

func main() {
	app := &cli.App{
		Name:  "facturafacil",
		Usage: "issue, render and email invoices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Value: ".env",
				Usage: "path to the env file, ignored when missing",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background jobs",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:  "render",
				Usage: "render a stored invoice to a PDF file",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Required: true, Usage: "invoice id"},
					&cli.StringFlag{Name: "out", Usage: "output file, defaults to factura_<id>.pdf"},
				},
				Action: render,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

type deps struct {
	cfg     config.Config
	pool    *pgxpool.Pool
	service *service.Service
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func bootstrap(ctx context.Context, envPath string) *deps {
	cfg, err := config.New(envPath)
	panicOnErr("load config", err)

	l, err := logger.New(cfg.Logger.Level)
	panicOnErr("create logger", err)

	issuer, err := config.LoadIssuer(cfg.IssuerConfigPath)
	panicOnErr("load issuer", err)

	err = postgres.UpMigrations(cfg.Postgres.DSN)
	panicOnErr("up migrations", err)

	pool, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConn)
	panicOnErr("connect to postgres", err)

	d := &deps{cfg: cfg, pool: pool}
	d.closers = append(d.closers, pool.Close)

	repo := repository.New(pool)

	store, err := docstore.New(cfg.Documents.Dir)
	panicOnErr("open document store", err)

	logoClient := logo.NewClient(cfg.Logo.Timeout, cfg.Logo.RetryAttempts)
	renderer := pdf.New(pdf.DefaultLayout(), logoClient)

	var producer service.Producer = broker.NopProducer{}

	if len(cfg.Kafka.Brokers) > 0 {
		p := broker.NewProducer(l, cfg.Kafka.Brokers, cfg.Kafka.InvoiceCreatedTopic)
		d.closers = append(d.closers, p.Close)
		producer = p
	}

	d.service = service.New(
		repo,
		renderer,
		store,
		mailer.New(cfg.Mailer),
		producer,
		service.FixedTaxRate(cfg.TaxRate),
		issuerProfile(issuer),
	)

	return d
}

func issuerProfile(i config.Issuer) entity.IssuerProfile {
	return entity.IssuerProfile{
		Name:        i.Name,
		TaxID:       i.TaxID,
		Address:     i.Address,
		City:        i.City,
		Province:    i.Province,
		LogoRef:     i.LogoPath,
		PaymentNote: i.PaymentNote,
		BankAccount: i.BankAccount,
	}
}

func serve(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	d := bootstrap(ctx, c.String("env"))
	defer d.Close()

	cfg := d.cfg

	jobs := job.NewService().
		TryRegisterJob(cfg.Jobs.WarmDocumentsEnabled, "warm invoice documents", cfg.Jobs.WarmDocumentsInterval,
			func(ctx context.Context) error {
				return d.service.WarmDocuments(ctx, cfg.Jobs.WarmDocumentsLookback)
			})
	jobs.Start(ctx)

	handler := api.NewHandler(d.service)
	mw := api.NewMiddleware(cfg.HTTP.APIKeyEnabled, cfg.HTTP.APIKey)

	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panicf("listen and serve: %s", err)
		}
	}()

	slog.InfoContext(ctx, "service started", "port", cfg.HTTP.Port, "jobs", jobs.Len())

	wg.Add(1)

	go func() {
		defer wg.Done()

		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		sig := <-ch

		slog.InfoContext(ctx, "got OS signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), WriteTimeout)
		defer shutdownCancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			slog.ErrorContext(ctx, "server shutdown", "error", err)
		}

		cancel()
		jobs.Stop()
	}()

	wg.Wait()

	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.New(c.String("env"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	_, err = logger.New(cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	err = postgres.UpMigrations(cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("up migrations: %w", err)
	}

	slog.InfoContext(c.Context, "migrations applied")

	return nil
}

func render(c *cli.Context) error {
	ctx := c.Context

	d := bootstrap(ctx, c.String("env"))
	defer d.Close()

	id := c.Int64("id")

	doc, err := d.service.Document(ctx, id)
	if err != nil {
		return fmt.Errorf("render invoice %d: %w", id, err)
	}

	out := c.String("out")
	if out == "" {
		out = doc.FileName()
	}

	err = os.WriteFile(out, doc.Data, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	slog.InfoContext(ctx, "invoice rendered", "invoice_id", id, "file", out)

	return nil
}

func panicOnErr(msg string, err error) {
	if err != nil {
		log.Panicf("%s: %s", msg, err)
	}
}
