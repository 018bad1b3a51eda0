package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory/config"
	"inventory/internal/admin"
	"inventory/internal/assignment"
	"inventory/internal/controller"
	"inventory/internal/db"
	"inventory/internal/export"
	"inventory/internal/health"
	"inventory/internal/jobs"
	"inventory/internal/logs"
	"inventory/internal/memstore"
	"inventory/internal/metrics"
	"inventory/internal/middleware"
	"inventory/internal/prp"
	"inventory/internal/qrcode"
	"inventory/internal/repo"
	"inventory/internal/sequence"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	redis      *redis.Client
	mem        *memstore.Store
	Router     *mux.Router
	httpServer *http.Server

	Assignments *assignment.Service
	Jobs        *jobs.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

// хранилища одного режима (gorm или in-memory)
type backends struct {
	store     assignment.Store
	qrRepo    qrcode.Repository
	employees prp.EmployeeStore
	read      interface {
		export.Source
		controller.DeviceLister
	}
}

func (a *App) Initialize(cfg *config.Config) {
	a.initialize(cfg, prometheus.DefaultRegisterer)
}

func (a *App) initialize(cfg *config.Config, reg prometheus.Registerer) {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB (опционально) */
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			log.Fatalf("db open failed: %v", err)
		}
		a.db = d
		if err := db.Migrate(a.db); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
	}

	/* 3) Redis (опционально) */
	if addr := a.cfg.Redis.Addr; addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
	}

	b := a.backends()
	m := metrics.New(reg, a.cfg.Metrics.Namespace)

	/* 4) QR */
	var qrSvc *qrcode.Service
	if a.cfg.QR.Enabled {
		storage, err := a.qrStorage()
		if err != nil {
			log.Fatalf("qr storage: %v", err)
		}
		qrSvc = qrcode.New(b.qrRepo, storage, a.cfg.QR.Size, a.cfg.QR.BaseURL)
	}

	/* 5) Сервисы */
	var issuer assignment.QRIssuer
	if qrSvc != nil {
		issuer = qrSvc
	}
	a.Assignments = assignment.New(b.store, issuer, assignment.Config{
		PastWindowDays:    a.cfg.Assignment.PastWindowDays,
		FutureWindowDays:  a.cfg.Assignment.FutureWindowDays,
		MaxSpanYears:      a.cfg.Assignment.MaxSpanYears,
		TransferAheadDays: a.cfg.Assignment.TransferAheadDays,
		PurposeMinLength:  a.cfg.Assignment.PurposeMinLength,
	})
	a.Assignments.Metrics = m

	var fetcher prp.Fetcher
	if a.cfg.PRP.BaseURL != "" {
		fetcher = prp.NewClient(prp.ClientOptions{
			BaseURL:  a.cfg.PRP.BaseURL,
			Token:    a.cfg.PRP.Token,
			PageSize: a.cfg.PRP.PageSize,
			Timeout:  a.cfg.PRP.Timeout,
		})
	}
	syncer := prp.NewSyncer(b.employees, fetcher)
	syncer.Metrics = m

	rec := controller.NewReconciler(b.store, b.read)

	var pull *prp.Syncer
	if fetcher != nil {
		pull = syncer
	}
	a.Jobs = jobs.NewScheduler(
		jobs.OverdueSweep(a.Assignments, a.cfg.Jobs.OverdueInterval),
		jobs.DeviceReconcile(rec, a.cfg.Jobs.ReconcileInterval),
		jobs.PRPPull(pull, a.cfg.Jobs.PRPInterval),
	)
	a.Jobs.Metrics = m

	/* 6) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
	)

	/* 7) Health + метрики */
	if a.db != nil {
		var checks []health.Check
		if a.redis != nil {
			checks = append(checks, health.RedisCheck(a.redis))
		}
		health.RegisterRoutesWithDB(a.Router, a.db, checks...) // /healthz, /readyz
	} else {
		health.RegisterRoutes(a.Router) // только /healthz
	}
	a.Router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	/* 8) API */
	admin.Attach(a.Router, admin.Dependencies{
		Assignments: a.Assignments,
		QR:          qrSvc,
		Export:      b.read,
		Reconciler:  rec,
		Jobs:        a.Jobs,
	})
	if secret := a.cfg.PRP.SharedSecret; secret != "" {
		prp.RegisterRoutes(a.Router, syncer, secret)
	} else {
		logs.Logger.Warn("prp.shared_secret is empty: PRP push endpoint disabled")
	}

	/* (необязательно) вывести известные маршруты в лог при старте */
	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
}

func (a *App) backends() backends {
	if a.db == nil {
		a.mem = memstore.New()
		logs.Logger.Warn("database.driver is empty: running on in-memory store, data is not persisted")
		return backends{
			store:     a.mem,
			qrRepo:    a.mem.QRCodes(),
			employees: a.mem.Employees(),
			read:      a.mem.Directory(),
		}
	}
	var rs *sequence.Redis
	if a.cfg.Sequence.Backend == "redis" && a.redis != nil {
		rs = sequence.NewRedis(a.redis, a.cfg.Sequence.KeyPrefix)
	}
	return backends{
		store:     newGormStore(a.db, rs),
		qrRepo:    repo.NewQRCodeStore(a.db),
		employees: repo.NewEmployeeStore(a.db),
		read:      newReadModel(a.db),
	}
}

func (a *App) qrStorage() (qrcode.Storage, error) {
	switch a.cfg.QR.Storage {
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return qrcode.NewS3Storage(ctx, qrcode.S3Options{
			Bucket:    a.cfg.QR.S3.Bucket,
			Region:    a.cfg.QR.S3.Region,
			Endpoint:  a.cfg.QR.S3.Endpoint,
			AccessKey: a.cfg.QR.S3.AccessKey,
			SecretKey: a.cfg.QR.S3.SecretKey,
		})
	default:
		return qrcode.NewFSStorage(a.cfg.QR.Dir)
	}
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	if a.cfg.Jobs.Enabled {
		a.Jobs.Start(a.ctx)
	}

	// Жёсткие таймауты; выгрузка XLSX укладывается в WriteTimeout
	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	a.Jobs.Stop()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	return nil
}
