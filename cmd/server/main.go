package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"citysim/internal/control"
	persistlog "citysim/internal/persistence/log"
	"citysim/internal/persistence/slots"
	"citysim/internal/persistence/snapshot"
	"citysim/internal/protocol"
	"citysim/internal/sim/city"
	"citysim/internal/sim/tuning"
	"citysim/internal/transport/httpapi"
	"citysim/internal/transport/ws"
)

func main() {
	boot := logrus.New()
	loadDotEnv(boot, ".env", ".env.local")

	var (
		addr        = flag.String("addr", envString("CITYSIM_ADDR", ":8080"), "http listen address")
		cityName    = flag.String("city", envString("CITYSIM_CITY", "city"), "city name")
		configDir   = flag.String("configs", envString("CITYSIM_CONFIGS", "./configs"), "config directory")
		dataDir     = flag.String("data", envString("CITYSIM_DATA", "./data"), "runtime data directory")
		tuningPath  = flag.String("tuning", envString("CITYSIM_TUNING", ""), "path to tuning.yaml (default: <configs>/tuning.yaml)")
		saveBackend = flag.String("saves", envString("CITYSIM_SAVE_BACKEND", "dir"), "save slot backend: dir|badger|memory")
		indexBack   = flag.String("index", envString("CITYSIM_INDEX_BACKEND", "sqlite"), "index backend: sqlite|none")
		archiveKeep = flag.Int("archive_keep", envInt("CITYSIM_ARCHIVE_KEEP", 5), "archived copies kept per slot (dir backend, 0 disables)")
		loadSlot    = flag.String("load", envString("CITYSIM_LOAD", ""), "save slot to load on start (default: the autosave slot, if present)")
		logLevel    = flag.String("log_level", envString("CITYSIM_LOG_LEVEL", "info"), "log level")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	logger.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("log_level", *logLevel).Warn("unknown log level, using info")
	}
	log := logger.WithField("city", *cityName)

	if err := slots.ValidateName(*cityName); err != nil {
		log.Fatalf("city name: %v", err)
	}
	cityDir := filepath.Join(*dataDir, "cities", *cityName)
	if err := os.MkdirAll(cityDir, 0o755); err != nil {
		log.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("load tuning: %v", err)
		}
		log.WithField("path", tp).Info("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	store, err := openSlotStore(*saveBackend, cityDir, *archiveKeep, log)
	if err != nil {
		log.Fatalf("open save store: %v", err)
	}
	defer store.Close()

	// Optional read-model; never affects the simulation.
	idx, err := openIndex(*indexBack, cityDir)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	dayLog := persistlog.NewDayLogger(cityDir)
	defer dayLog.Close()

	hub := ws.NewHub(log)
	autosave := make(chan snapshot.SaveV1, 2)
	sinks := []city.DaySink{dayLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	cy, err := city.New(city.Config{
		Name:       *cityName,
		Tuning:     tune,
		Logger:     log,
		DaySinks:   sinks,
		StateSinks: []city.StateSink{hub},
		Autosave:   autosave,
	})
	if err != nil {
		log.Fatalf("city: %v", err)
	}

	slot := strings.TrimSpace(*loadSlot)
	if slot == "" {
		if _, err := store.Stat(slots.AutosaveName(*cityName)); err == nil {
			slot = slots.AutosaveName(*cityName)
		}
	}
	if slot != "" {
		save, err := store.Load(slot)
		if err != nil {
			log.Fatalf("load slot %q: %v", slot, err)
		}
		if err := cy.Restore(save); err != nil {
			log.Fatalf("restore slot %q: %v", slot, err)
		}
		log.WithFields(logrus.Fields{"slot": slot, "day": save.Day}).Info("resumed from save")
	}

	cc := control.Config{City: cy, Slots: store, Publish: hub.PublishState, Logger: log}
	if idx != nil {
		cc.Index = idx
	}
	ctl, err := control.New(cc)
	if err != nil {
		log.Fatalf("control: %v", err)
	}
	validator, err := protocol.NewValidator()
	if err != nil {
		log.Fatalf("protocol schemas: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go ctl.RunAutosave(ctx, autosave)

	cityDone := make(chan struct{})
	go func() {
		defer close(cityDone)
		if err := cy.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("city stopped")
		}
	}()

	mux := http.NewServeMux()
	var days httpapi.DayReader
	if idx != nil {
		days = idx
	}
	mux.Handle("/", httpapi.New(ctl, days, validator, log).Router())
	mux.HandleFunc("/v1/ws", ws.NewServer(hub, ctl, validator, log).Handler())
	mux.HandleFunc("/metrics", metricsHandler(ctl, hub, idx))
	if envBool("CITYSIM_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", loopbackOnly(pprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", loopbackOnly(pprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", loopbackOnly(pprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", loopbackOnly(pprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", loopbackOnly(pprof.Trace))
	} else {
		log.Debug("pprof endpoints disabled (CITYSIM_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.WithFields(logrus.Fields{"addr": *addr, "tuning": tp, "saves": *saveBackend, "index": *indexBack}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
	cancel()
	<-cityDone

	// Final save so a restart resumes where we stopped.
	if err := ctl.StoreSave(slots.AutosaveName(*cityName), cy.Snapshot()); err != nil {
		log.WithError(err).Warn("final autosave failed")
	}
	if idx != nil {
		ctx3, cancel3 := context.WithTimeout(context.Background(), 2*time.Second)
		_ = idx.Flush(ctx3)
		cancel3()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
