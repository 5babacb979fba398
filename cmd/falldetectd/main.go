// falldetectd runs the wearable fall-detection core: sensor ingest,
// sliding-window classification, the emergency session state machine,
// escalation dispatch and the local HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/falldetect/internal/api"
	"github.com/banshee-data/falldetect/internal/config"
	"github.com/banshee-data/falldetect/internal/db"
	"github.com/banshee-data/falldetect/internal/detect"
	"github.com/banshee-data/falldetect/internal/dispatch"
	"github.com/banshee-data/falldetect/internal/monitoring"
	"github.com/banshee-data/falldetect/internal/pipeline"
	"github.com/banshee-data/falldetect/internal/sensor"
	"github.com/banshee-data/falldetect/internal/session"
	"github.com/banshee-data/falldetect/internal/timeutil"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	serialPort = flag.String("serial", "", "Serial port of the IMU board (overrides config)")
	replayPath = flag.String("replay", "", "Replay a recorded trace instead of reading a sensor")
	debugLog   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	monitoring.SetDebug(*debugLog)

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	clock := timeutil.RealClock{}

	store, err := db.NewStore(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to open database %s: %v", cfg.GetDBPath(), err)
	}
	defer store.Close()

	supp := detect.NewSuppressor(cfg.GetPatternCapacity(), store)
	classifier := detect.NewClassifier(cfg.GetModelPath(), supp)
	dispatcher := buildDispatcher(cfg, clock, store)

	engine := session.NewEngine(dispatcher, supp, clock, session.Options{
		CountdownSeconds: cfg.GetCountdownSeconds(),
		Recorder:         store,
		Counters:         store,
	})
	defer engine.Stop()

	pl := pipeline.New(classifier, engine, clock, pipeline.Options{
		WindowSize:       cfg.GetWindowSize(),
		WindowOverlap:    cfg.GetWindowOverlap(),
		EvaluateInterval: cfg.GetEvaluateInterval(),
		SensitivityLevel: cfg.GetSensitivityLevel(),
		Recorder:         store,
	})
	pl.Start()
	defer pl.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	startSensor(ctx, &wg, cfg, clock, pl)

	addr := cfg.GetListenAddr()
	if *listen != "" {
		addr = *listen
	}
	server := api.NewServer(engine, supp, classifier, dispatcher, pl.Collector(), store, cfg, clock)
	httpServer := &http.Server{Addr: addr, Handler: server.ServeMux()}

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("falldetectd: listening on %s (model=%s, sensitivity=%d)",
			addr, classifier.Model(), cfg.GetSensitivityLevel())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("falldetectd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("falldetectd: HTTP shutdown: %v", err)
	}
	wg.Wait()
}

// buildDispatcher assembles the escalation channels the config enables.
func buildDispatcher(cfg *config.Config, clock timeutil.Clock, store *db.Store) *dispatch.Dispatcher {
	var channels []dispatch.Channel
	if cfg.GetEnablePush() {
		channels = append(channels, dispatch.NewPushChannel(cfg.GetPushGatewayURL(), cfg.GetPushToken(), 0))
	}
	if cfg.GetEnableSMS() {
		channels = append(channels, dispatch.NewSMSChannel(cfg.GetSMSGatewayURL(), cfg.GetSMSToken(), cfg.GetSMSFrom(), 0))
	}
	if cfg.GetEnableMQTT() {
		bus, err := dispatch.NewBusChannel(cfg.GetMQTTBroker(), cfg.GetMQTTClientID(), cfg.GetMQTTTopic())
		if err != nil {
			monitoring.Logf("falldetectd: MQTT channel unavailable: %v", err)
		} else {
			channels = append(channels, bus)
		}
	}

	var voice dispatch.Channel
	if cfg.GetVoiceGatewayURL() != "" {
		voice = dispatch.NewVoiceChannel(cfg.GetVoiceGatewayURL(), cfg.GetVoiceToken(), 0)
	}

	contacts := make([]dispatch.Contact, 0, len(cfg.Contacts))
	for _, c := range cfg.Contacts {
		contacts = append(contacts, dispatch.Contact{
			ID:                c.ID,
			Name:              c.Name,
			Phone:             c.Phone,
			Relationship:      c.Relationship,
			Primary:           c.Primary,
			PreferredChannels: c.PreferredChannels,
		})
	}

	resolver := dispatch.NewLocationResolver(nil, clock, cfg.GetLocationTimeout())
	d := dispatch.NewDispatcher(channels, voice, resolver, clock, dispatch.Options{
		UserName:        cfg.GetUserName(),
		Contacts:        contacts,
		AutoCallPrimary: cfg.GetAutoCallPrimary(),
		Recorder:        store,
	})
	monitoring.Logf("falldetectd: %s", d)
	return d
}

// startSensor launches the configured sample source. Replay beats
// serial; with neither the daemon still serves the API.
func startSensor(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, clock timeutil.Clock, pl *pipeline.Pipeline) {
	replay := cfg.GetReplayPath()
	if *replayPath != "" {
		replay = *replayPath
	}
	port := cfg.GetSerialPort()
	if *serialPort != "" {
		port = *serialPort
	}

	switch {
	case replay != "":
		r := sensor.NewReplay(replay, true, clock)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Play(ctx, pl.Offer); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("falldetectd: replay failed: %v", err)
			}
		}()
	case port != "":
		imu, err := sensor.NewIMUPort(port, cfg.GetSerialBaud())
		if err != nil {
			log.Fatalf("Failed to open serial port %s: %v", port, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := imu.Monitor(ctx, pl.Offer); err != nil {
				monitoring.Logf("falldetectd: sensor monitor failed: %v", err)
			}
		}()
	default:
		monitoring.Logf("falldetectd: no sensor source configured, serving API only")
	}
}
