package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/crypto-risk-gate/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-risk-gate/internal/logger"
	"github.com/ducminhle1904/crypto-risk-gate/internal/monitoring"
	"github.com/ducminhle1904/crypto-risk-gate/internal/risk"
	"github.com/ducminhle1904/crypto-risk-gate/internal/sizing"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/config"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/reporting"
	"github.com/ducminhle1904/crypto-risk-gate/pkg/types"
)

// markRefreshInterval is how often open-position mark prices are pulled
// from the exchange.
const markRefreshInterval = 30 * time.Second

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (e.g., risk_gate.json)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
		portfolio  = flag.Float64("portfolio", 10000, "Starting portfolio value in quote currency")
		offline    = flag.Bool("offline", false, "Run without exchange connectivity (static volatility)")
		demo       = flag.Bool("demo", false, "Run a demonstration order flow and exit")
		reportPath = flag.String("report", "", "Write the decision audit to this Excel file on shutdown")
	)
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: Could not load .env file (%v), checking environment variables...", err)
	}

	fmt.Println("🛡️ Risk Gate Starting...")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	riskLog, err := logger.NewLogger("main")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer riskLog.Close()

	var client *bybit.Client
	if !*offline {
		client = bybit.NewClient(bybit.Config{
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
			Testnet:   cfg.Exchange.Testnet,
			Demo:      cfg.Exchange.Demo,
		})
		fmt.Printf("🏪 Exchange:    bybit (%s)\n", client.GetEnvironment())
	}

	health := monitoring.NewHealthChecker()

	manager, err := risk.NewManager(cfg.Limits, *portfolio, risk.Options{
		Logger:            riskLog,
		Volatility:        buildVolatilityProvider(cfg, client),
		Correlation:       risk.DefaultCorrelationGroups(),
		Health:            health,
		LookupTimeout:     time.Duration(cfg.Providers.LookupTimeout),
		DefaultVolatility: cfg.Providers.DefaultVolatility,
	})
	if err != nil {
		log.Fatalf("Failed to create risk manager: %v", err)
	}

	fmt.Printf("🔧 Environment: %s\n", cfg.Environment)
	fmt.Printf("💰 Portfolio:   $%.2f\n", *portfolio)

	if *demo {
		runDemo(manager, cfg, *portfolio)
		writeReport(*reportPath, manager)
		return
	}

	startMonitoringServers(cfg, health)
	if client != nil {
		go refreshMarkPrices(client, manager, cfg.Exchange.Category, riskLog)
	}

	fmt.Printf("📊 Metrics:     http://localhost:%d/metrics\n", cfg.Monitoring.PrometheusPort)
	fmt.Printf("❤️ Health:      http://localhost:%d/health\n", cfg.Monitoring.HealthPort)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\n🛑 Shutting down...")
	writeReport(*reportPath, manager)
}

// buildVolatilityProvider returns a live Bybit-backed estimator, or a static
// table covering the majors when running offline.
func buildVolatilityProvider(cfg *config.Config, client *bybit.Client) risk.VolatilityProvider {
	if client == nil {
		return risk.StaticVolatility{
			"BTCUSDT": 0.03,
			"ETHUSDT": 0.04,
			"LTCUSDT": 0.05,
		}
	}

	return bybit.NewVolatilityEstimator(client, bybit.EstimatorConfig{
		Category: cfg.Exchange.Category,
	})
}

// refreshMarkPrices periodically pulls the latest ticker for every open
// position so exposure and unrealized PnL reporting stay current between
// fills.
func refreshMarkPrices(client *bybit.Client, manager *risk.Manager, category string, riskLog *logger.Logger) {
	ticker := time.NewTicker(markRefreshInterval)
	defer ticker.Stop()

	for range ticker.C {
		for _, pos := range manager.Status().OpenPositions {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			price, err := client.GetLatestPrice(ctx, category, pos.Symbol)
			cancel()
			if err != nil {
				riskLog.Warning("mark price refresh failed for %s: %v", pos.Symbol, err)
				continue
			}
			manager.UpdateMarketPrice(types.Ticker{
				Symbol:    pos.Symbol,
				Price:     price,
				Timestamp: time.Now(),
			})
		}
	}
}

func startMonitoringServers(cfg *config.Config, health *monitoring.HealthChecker) {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		if err := http.ListenAndServe(addr, healthMux); err != nil {
			log.Printf("health server stopped: %v", err)
		}
	}()
}

// runDemo pushes a few representative orders through the gate so a new
// deployment can be inspected end to end without touching an exchange.
func runDemo(manager *risk.Manager, cfg *config.Config, portfolioValue float64) {
	ctx := context.Background()
	console := reporting.NewConsoleReporter()
	snap := types.PortfolioSnapshot{Value: portfolioValue, AvailableBalance: portfolioValue}

	suggested := sizing.Notional(cfg.Sizing, cfg.Limits, sizing.Inputs{
		PortfolioValue: portfolioValue,
	})
	fmt.Printf("📐 Suggested size (%s): $%.2f\n", suggested.Method, suggested.Notional)

	proposals := []types.OrderProposal{
		{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: suggested.Notional / 50000, Price: 50000},
		{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.5, Price: 50000}, // oversized
		{Symbol: "ETHUSDT", Side: types.SideBuy, Quantity: 0.1, Price: 3000},
		{Symbol: "SOLUSDT", Side: types.SideSell, Quantity: 1, Price: 150}, // naked short
	}

	for _, p := range proposals {
		d := manager.ValidateOrder(ctx, p, snap)
		if d.Accepted {
			if err := manager.RecordFill(types.Fill{
				Symbol: p.Symbol, Side: p.Side, Quantity: d.AdjustedQuantity, Price: p.Price,
			}); err != nil {
				log.Printf("record fill: %v", err)
				continue
			}
			levels, err := manager.CalculateStopLoss(ctx, p.Symbol, p.Side, p.Price)
			if err != nil {
				log.Printf("stop levels: %v", err)
				continue
			}
			if err := manager.SetProtectiveLevels(p.Symbol, levels.StopLoss, levels.TakeProfit); err != nil {
				log.Printf("protective levels: %v", err)
			}
		}
	}

	assessment := manager.AssessPortfolioRisk(portfolioValue)
	status := manager.Status()

	console.PrintStatus(status, assessment)
	console.PrintPositions(status)
	console.PrintDecisions(manager.DecisionHistory())
}

func writeReport(path string, manager *risk.Manager) {
	if path == "" {
		return
	}

	status := manager.Status()
	assessment := manager.AssessPortfolioRisk(status.PortfolioValue)

	reporter := reporting.NewExcelReporter()
	if err := reporter.WriteDecisionAudit(path, manager.DecisionHistory(), status, assessment); err != nil {
		log.Printf("Failed to write decision audit: %v", err)
		return
	}
	fmt.Printf("📄 Decision audit written to %s\n", path)
}
