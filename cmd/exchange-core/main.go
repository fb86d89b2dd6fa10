package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stocksanalyses/exchange-core/internal/backtest"
	"github.com/stocksanalyses/exchange-core/internal/config"
	"github.com/stocksanalyses/exchange-core/internal/corporate"
	"github.com/stocksanalyses/exchange-core/internal/events"
	"github.com/stocksanalyses/exchange-core/internal/fees"
	"github.com/stocksanalyses/exchange-core/internal/matching"
	"github.com/stocksanalyses/exchange-core/internal/risk"
	"github.com/stocksanalyses/exchange-core/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	backtestPath := flag.String("backtest", "", "replay scenario file; run a backtest and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if *backtestPath != "" {
		if err := runBacktest(*backtestPath, cfg, log); err != nil {
			log.Fatal("backtest failed", zap.Error(err))
		}
		return
	}

	var sinks []events.Sink
	var kafkaSink *events.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink = events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		sinks = append(sinks, kafkaSink)
		log.Info("kafka sink enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	bus := events.NewBus(cfg.Matching.EventBuffer, log, sinks...)

	riskMgr := risk.NewManager(log)
	feeCalc := fees.NewCalculator(fees.NewSchedule(fees.DefaultScheduleConfig()))

	svc := matching.NewService(matching.ServiceConfig{
		Risk:          riskMgr,
		Fees:          feeCalc,
		Publisher:     bus,
		SnapshotDepth: cfg.Matching.SnapshotDepth,
	}, log)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         cfg.Metrics.Addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	log.Info("exchange core started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	svc.Close()
	bus.Close()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Warn("kafka close failed", zap.Error(err))
		}
	}
	if metricsSrv != nil {
		metricsSrv.Close()
	}
}

// scenario is the on-disk shape of one replay: the backtest config plus
// the order and corporate-action streams.
type scenario struct {
	Config  backtest.Config    `json:"config"`
	Orders  []matching.Order   `json:"orders"`
	Actions []corporate.Action `json:"actions"`
}

// runBacktest replays a scenario file through the enhanced engine and
// writes the result as JSON to stdout.
func runBacktest(path string, cfg *config.Config, log *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sc scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return err
	}
	if sc.Config.LatencyMs == 0 {
		sc.Config.LatencyMs = cfg.Backtest.LatencyMs
	}
	if sc.Config.SlippageRate == 0 {
		sc.Config.SlippageRate = cfg.Backtest.SlippageRate
	}
	// scenario files carry intent only; seed the execution state
	for i := range sc.Orders {
		o := &sc.Orders[i]
		if o.Remaining == 0 {
			o.Remaining = o.Quantity
		}
		if o.Type == matching.TypeIceberg && o.VisibleRemaining == 0 {
			o.VisibleRemaining = o.DisplayQty
			if o.Remaining < o.VisibleRemaining {
				o.VisibleRemaining = o.Remaining
			}
		}
	}

	log.Info("replaying scenario",
		zap.String("path", path),
		zap.String("instrument", sc.Config.Instrument),
		zap.Int("orders", len(sc.Orders)),
		zap.Int("actions", len(sc.Actions)))

	engine := backtest.NewEnhancedEngine(sc.Config, rand.New(rand.NewSource(time.Now().UnixNano())), log)
	result := engine.Run(sc.Orders, sc.Actions)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
