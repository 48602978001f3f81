package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/kardianos/service"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"webnorm/internal/auth"
	"webnorm/internal/calc/export"
	"webnorm/internal/calc/norm"
	"webnorm/internal/config"
	"webnorm/internal/geochem"
	"webnorm/internal/logging"
	"webnorm/internal/runs"
)

func CORS(mux *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

type deps struct {
	conf   *config.Config
	log    *zap.Logger
	engine norm.Engine
	runs   runs.Repository
	links  *auth.LinkSigner
}

func HandleList(mux *mux.Router, d deps) {
	limiter := auth.NewIPRateLimiter(rate.Limit(d.conf.RateLimit), d.conf.RateBurst)

	api := mux.PathPrefix("/api").Subrouter()
	api.Use(limiter.LimitMiddleware)

	samplesH := &geochem.Handler{Threshold: d.conf.SumThreshold, Log: d.log}
	exportH := &export.Handler{}
	normH := &norm.Handler{
		Engine:   d.engine,
		Runs:     d.runs,
		Links:    d.links,
		SumLimit: d.conf.SumLimit,
		Timeout:  d.conf.EngineTimeout,
		Log:      d.log,
	}
	runsH := &runs.Handler{Repo: d.runs, Links: d.links, SumLimit: d.conf.SumLimit, Log: d.log}

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	api.HandleFunc("/template", samplesH.Template).Methods("GET")
	api.HandleFunc("/template/link", exportH.TemplateLink).Methods("GET")
	api.HandleFunc("/samples/preview", samplesH.Preview).Methods("POST")
	api.HandleFunc("/norms", normH.Calc).Methods("POST")
	api.HandleFunc("/runs", runsH.List).Methods("GET")
	api.HandleFunc("/runs/{id:[0-9]+}/download", runsH.Download).Methods("GET")
}

func newEngine(c *config.Config) norm.Engine {
	if c.Engine == "http" {
		return norm.NewHTTPEngine(c.EngineURL, c.EngineTimeout)
	}
	return norm.NewExecEngine(c.EngineCmd)
}

type app struct {
	conf   *config.Config
	log    *zap.Logger
	db     *sql.DB
	server *http.Server
	wg     sync.WaitGroup
}

func (a *app) Start(s service.Service) error {
	var repo runs.Repository = runs.NewMemoryRepository()
	if a.conf.DatabaseURL != "" {
		db, err := runs.OpenDB(a.conf.DatabaseURL)
		if err != nil {
			return err
		}
		pg := runs.NewPostgresRepository(db)
		if err := pg.Migrate(context.Background()); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.db = db
		repo = pg
	} else {
		a.log.Warn("DATABASE_URL not set, runs are kept in memory")
	}

	router := mux.NewRouter()
	HandleList(router, deps{
		conf:   a.conf,
		log:    a.log,
		engine: newEngine(a.conf),
		runs:   repo,
		links:  auth.NewLinkSigner(a.conf.TokenKey, a.conf.LinkTTL),
	})
	a.server = &http.Server{
		Addr:              a.conf.Addr,
		Handler:           CORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.wg.Add(1)
	go a.run()
	return nil
}

func (a *app) run() {
	defer a.wg.Done()
	a.log.Info("starting webnorm", zap.String("addr", a.conf.Addr), zap.String("engine", a.conf.Engine))

	var err error
	if a.conf.TLSCert != "" {
		err = a.server.ListenAndServeTLS(a.conf.TLSCert, a.conf.TLSKey)
	} else {
		err = a.server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		a.log.Error("server error", zap.Error(err))
	}
}

func (a *app) Stop(s service.Service) error {
	a.log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.wg.Wait()
	if a.db != nil {
		a.db.Close()
	}
	a.log.Info("server stopped")
	a.log.Sync()
	return err
}

func main() {
	svcFlag := flag.String("service", "", "Control the system service.")
	envFile := flag.String("env", "", "Path of the .env file (default .env next to the binary or in the working dir).")
	flag.Parse()

	conf, err := config.Load(envFiles(*envFile)...)
	if err != nil {
		log.Fatal(err)
	}
	if err := conf.RequireTokenKey(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(conf.LogFile, conf.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	svcConfig := &service.Config{
		Name:        "webnorm",
		DisplayName: "webNORM",
		Description: "Calculates CIPW normative mineralogy from uploaded bulk-rock analyses",
	}

	prg := &app{conf: conf, log: logger}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		log.Fatal(err)
	}

	if *svcFlag != "" {
		err = service.Control(s, *svcFlag)
		if err != nil {
			log.Printf("Valid actions: %q\n", service.ControlAction)
			log.Fatal(err)
		}
		return
	}

	if err = s.Run(); err != nil {
		logger.Error("service exited", zap.Error(err))
		os.Exit(1)
	}
}

// envFiles lists the .env candidates: the explicit path, or the working
// directory and the binary's directory.
func envFiles(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	files := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		files = append(files, filepath.Join(filepath.Dir(exe), ".env"))
	}
	return files
}
