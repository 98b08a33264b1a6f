package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"govigil/adapters/api"
	"govigil/adapters/excel"
	"govigil/adapters/postgres"
	"govigil/app"
	"govigil/domain/signal"
	"govigil/internal/config"
	"govigil/internal/exec"
	"govigil/internal/testkit"
	"govigil/ports"
	"govigil/ui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	log := logrus.WithField("component", "main")

	var store ports.CacheStore
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer db.Close()
		if err := postgres.Migrate(context.Background(), db); err != nil {
			log.WithError(err).Fatal("failed to migrate cache schema")
		}
		store = postgres.NewCacheStore(db)
		log.Info("persistent result cache enabled")
	}

	cache, err := exec.NewCache(cfg.Exec.CacheSize, store)
	if err != nil {
		log.WithError(err).Fatal("failed to create cache")
	}

	svc := app.NewAnalysisService(cfg, testkit.NewTestKit().RNGAdapter())
	router := exec.NewRouter(cfg.Exec, cache, app.NewLocalVenue(svc), app.NewServerVenue(svc))

	table, err := loadTable(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to load case table")
	}

	apiServer := api.NewServer(router, cfg.Server.GinMode)
	apiServer.SetTable(table)

	reportApp := ui.NewApp(router)
	reportApp.SetTable(table)

	var g errgroup.Group
	g.Go(func() error {
		log.WithField("port", cfg.Server.Port).Info("api server starting")
		return apiServer.Run(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		log.WithField("port", cfg.Server.ReportPort).Info("report server starting")
		return http.ListenAndServe(":"+cfg.Server.ReportPort, reportApp.Handler())
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

// loadTable reads the case file named by CASE_FILE, or generates a synthetic
// dataset for local development when none is configured.
func loadTable(cfg *config.Config) (*signal.CaseTable, error) {
	if path := os.Getenv("CASE_FILE"); path != "" {
		return excel.NewCaseReader(path).Read()
	}
	logrus.Warn("CASE_FILE not set, serving a synthetic dataset")
	return testkit.GenerateCaseTable(testkit.GeneratorConfig{
		Cases: 20000,
		Seed:  1,
		InjectedSignals: []testkit.InjectedSignal{
			{Drug: "nifedipine", Reaction: "gingival hyperplasia", Rate: 0.005, Serious: true},
			{Drug: "minocycline", Reaction: "drug-induced lupus", Rate: 0.002, Serious: true},
		},
		DuplicateRate: 0.01,
	}), nil
}
