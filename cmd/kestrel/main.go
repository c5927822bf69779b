package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kestrel/internal/auth"
	"kestrel/internal/config"
	"kestrel/internal/engine"
	"kestrel/internal/overlay"
	"kestrel/internal/pipeline"
	"kestrel/internal/source"
	"kestrel/internal/store"
	"kestrel/internal/stream"
	"kestrel/internal/telegram"
	"kestrel/internal/ws"
)

func main() {
	var (
		envF    = flag.String("env", ".env", "Path to .env configuration file")
		listenF = flag.String("listen", "", "HTTP listen address (overrides LISTEN_ADDR)")
	)
	flag.Parse()

	// Setup logger.
	var (
		logger *log.Logger
	)
	{
		logger = log.New(os.Stderr, "[kestrel] ", log.Ltime)
	}

	cfg := config.Load(*envF)
	if *listenF != "" {
		cfg.ListenAddr = *listenF
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %s", err)
	}

	// Initialize the inference engine.
	eng, err := buildEngine(cfg)
	if err != nil {
		logger.Fatalf("failed to initialize engine: %s", err)
	}
	defer eng.Close()
	logger.Printf("engine ready: %s (%dx%d input, %d classes)",
		eng.Name(), eng.InputWidth(), eng.InputHeight(), len(eng.Classes()))

	// Build the pipeline core.
	gate := pipeline.NewStatusGate()
	ingestor := pipeline.NewFrameIngestor(gate, logger)
	averager, err := pipeline.NewTemporalAverager(cfg.AvgWindow, eng.OutputSize())
	if err != nil {
		logger.Fatalf("failed to build averager: %s", err)
	}

	bus := pipeline.NewEventBus()
	defer bus.Close()

	aggregator := pipeline.NewResultAggregator(eng.Classes(), pipeline.AggregatorConfig{
		Threshold:      float32(cfg.Threshold),
		NMSOverlap:     cfg.NMSOverlap,
		MinBoxFraction: cfg.MinBoxFraction,
		DepthGridSize:  cfg.DepthGridSize,
	}, bus, ingestor, logger)

	renderer := overlay.NewRenderer(cfg.JPEGQuality)

	sched := pipeline.NewScheduler(eng, gate, ingestor, averager, aggregator, renderer,
		pipeline.SchedulerConfig{
			SwapRB:         cfg.SwapRB,
			DisplayEnabled: cfg.DisplayEnabled,
		}, logger)

	// Output surfaces.
	hub := ws.NewHub(logger)
	publisher := ws.NewPublisher(hub, logger)
	unsubscribe := bus.Subscribe(publisher)
	defer unsubscribe()
	sched.AttachSink(publisher)

	preview := stream.NewPreview(logger)
	sched.AttachSink(preview)

	var history *store.HistoryHandler
	if cfg.StorePath != "" {
		db, err := store.Open(cfg.StorePath)
		if err != nil {
			logger.Fatalf("failed to open store: %s", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			logger.Fatalf("failed to migrate store: %s", err)
		}

		recorder := store.NewRecorder(db, cfg.StoreRetention, logger)
		unsubRecorder := bus.Subscribe(recorder)
		defer unsubRecorder()
		recorder.Start()
		defer recorder.Stop()

		history = store.NewHistoryHandler(db, logger)
	}

	if cfg.TelegramEnabled {
		botCfg := telegram.Config{
			BotToken: cfg.TelegramToken,
			ChatID:   cfg.TelegramChatID,
			Enabled:  true,
			Cooldown: cfg.TelegramCooldown,
		}
		if err := telegram.ValidateConfig(botCfg); err != nil {
			logger.Fatalf("invalid telegram configuration: %s", err)
		}
		notifier := telegram.NewNotifier(telegram.NewBot(botCfg), cfg.AlertClasses, logger)
		unsubNotifier := bus.Subscribe(notifier)
		defer unsubNotifier()
	}

	authenticator := auth.NewAuthenticator(auth.Settings{
		Enabled:   cfg.AuthEnabled,
		Username:  cfg.AuthUsername,
		Password:  cfg.AuthPassword,
		JWTSecret: cfg.JWTSecret,
		JWTExpiry: cfg.JWTExpiry,
	})

	// Input channels.
	capture := source.NewCapture(cfg.CameraDevice, cfg.CameraFPS, cfg.CameraWidth, cfg.CameraHeight, logger)
	sub := capture.Subscribe(cfg.CameraQueueSize)
	defer capture.Unsubscribe(sub)

	var depth *source.DepthCapture
	if cfg.DepthEnabled {
		depth = source.NewDepthCapture(cfg.DepthDevice, cfg.CameraFPS, cfg.CameraWidth, cfg.CameraHeight, logger)
	}

	go runIngest(cfg, ingestor, sub, depth, logger)

	// Start everything.
	sched.Start()
	defer sched.Stop()
	capture.Start()
	defer capture.Stop()
	if depth != nil {
		depth.Start()
		defer depth.Stop()
	}

	// Create channel used by both the signal handler and server goroutine
	// to notify the main goroutine when to stop.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	shutdownHTTP := startHTTPServer(cfg.ListenAddr, hub, ingestor, preview, history, authenticator, errc, logger)
	defer shutdownHTTP()

	logger.Printf("exiting (%v)", <-errc)
}

// buildEngine constructs the configured inference backend.
func buildEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.EngineKind {
	case "http":
		return engine.NewHTTPEngine(cfg.EngineEndpoint, cfg.EngineTimeout)
	case "dnn":
		return engine.NewDNNEngine(engine.DNNConfig{
			WeightsPath: cfg.WeightsPath,
			ConfigPath:  cfg.ModelConfig,
			NamesPath:   cfg.NamesPath,
			InputWidth:  cfg.InputWidth,
			InputHeight: cfg.InputHeight,
			UseCUDA:     cfg.UseCUDA,
		})
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.EngineKind)
	}
}

// runIngest shuttles captured frames into the pipeline, pairing them with
// depth planes when depth-assisted mode is on.
func runIngest(cfg *config.Config, ingestor *pipeline.FrameIngestor, sub *source.Subscription, depth *source.DepthCapture, logger *log.Logger) {
	if depth == nil {
		for {
			select {
			case <-sub.Done:
				return
			case frame := <-sub.Channel:
				ingestor.IngestStreamFrame(frame.Data, nil, frame.Timestamp)
			}
		}
	}

	sync := source.NewPairSynchronizer(cfg.PairTolerance, func(pair source.Pair) {
		ingestor.IngestStreamFrame(pair.Color.Data, pair.Depth.Map, pair.Color.Timestamp)
	}, logger)

	for {
		select {
		case <-sub.Done:
			return
		case frame := <-sub.Channel:
			sync.PushColor(frame)
		case plane := <-depth.Frames():
			sync.PushDepth(plane)
		}
	}
}
