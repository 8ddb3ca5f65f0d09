package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cyrus123live/btc-trading/internal/account"
	"github.com/cyrus123live/btc-trading/internal/config"
	errs "github.com/cyrus123live/btc-trading/internal/errors"
	"github.com/cyrus123live/btc-trading/internal/gateway"
	"github.com/cyrus123live/btc-trading/internal/logger"
	"github.com/cyrus123live/btc-trading/internal/market"
	"github.com/cyrus123live/btc-trading/internal/monitoring"
	"github.com/cyrus123live/btc-trading/internal/session"
	"github.com/cyrus123live/btc-trading/internal/trading"
	"github.com/cyrus123live/btc-trading/internal/ui"
	"github.com/cyrus123live/btc-trading/pkg/reporting"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

func main() {
	loadEnvFile(".env")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := session.NewFileTokenStore(cfg.Session.TokenFile)
	sess := session.NewManager(cfg.Server.BaseURL, store, logger.Component(log, "session"))

	health := monitoring.NewHealthChecker()
	if cfg.Monitoring.Enabled {
		monitoring.Serve(cfg.Monitoring.Port, health)
		logger.Component(log, "monitoring").Infof("metrics listening on :%d", cfg.Monitoring.Port)
	}

	// Expiry ends the current session's component set; the outer loop then
	// returns to the login prompt with everything rebuilt from scratch.
	expired := make(chan struct{}, 1)
	sess.OnExpired(func() {
		monitoring.RecordSessionExpired()
		select {
		case expired <- struct{}{}:
		default:
		}
	})

	lines := readLines(os.Stdin)

	app := &app{
		cfg:     cfg,
		log:     log,
		sess:    sess,
		health:  health,
		expired: expired,
		lines:   lines,
	}

	for ctx.Err() == nil {
		if !sess.Authenticated() {
			if !app.login(ctx) {
				break
			}
		}
		drain(expired)

		again := app.runSession(ctx)
		if !again {
			break
		}
		fmt.Println("session ended, please log in again")
	}

	log.Info("terminal shut down")
}

type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	sess    *session.Manager
	health  *monitoring.HealthChecker
	expired chan struct{}
	lines   <-chan string
}

// login prompts for credentials until authentication succeeds or input ends
func (a *app) login(ctx context.Context) bool {
	for ctx.Err() == nil {
		fmt.Print("username: ")
		username, ok := next(ctx, a.lines)
		if !ok {
			return false
		}
		fmt.Print("password: ")
		password, ok := next(ctx, a.lines)
		if !ok {
			return false
		}

		_, err := a.sess.Authenticate(ctx, strings.TrimSpace(username), strings.TrimSpace(password))
		if err == nil {
			a.health.SetAuthenticated(true)
			return true
		}
		if errs.IsInvalidCredentials(err) {
			fmt.Println("invalid credentials, try again")
			continue
		}
		a.log.WithError(err).Error("login failed")
		fmt.Println("login failed, see log")
	}
	return false
}

// runSession builds all session-scoped components, runs the command loop and
// tears everything down on exit. Returns true when the caller should loop
// back to the login prompt.
func (a *app) runSession(ctx context.Context) bool {
	cfg := a.cfg
	gw := gateway.New(cfg.Server.BaseURL, a.sess, logger.Component(a.log, "gateway"))
	dashboard := ui.NewDashboard(cfg.Trading.Symbol)

	poller := account.NewPoller(gw, cfg.Poller.Interval, func(snap account.Snapshot) {
		a.health.MarkPoll()
	}, logger.Component(a.log, "poller"))

	sync := market.NewSynchronizer(market.Config{
		WebSocketURL:      cfg.Server.WebSocketURL,
		Duration:          cfg.Trading.Duration,
		BarSize:           cfg.Trading.BarSize,
		SnapshotTimeout:   cfg.Server.SnapshotTimeout,
		PingInterval:      cfg.Stream.PingInterval,
		ReconnectDelay:    cfg.Stream.ReconnectDelay,
		MaxReconnectDelay: cfg.Stream.MaxReconnectDelay,
	}, gw, a.sess, market.Handlers{
		OnSnapshot: func(candles []types.Candle) {
			if n := len(candles); n > 0 {
				dashboard.ObserveCandle(candles[n-1])
			}
		},
		OnUpdate: func(c types.Candle) {
			a.health.MarkCandle()
			dashboard.ObserveCandle(c)
		},
	}, logger.Component(a.log, "candle-sync"))

	orders := trading.NewOrchestrator(gw, poller, cfg.Trading.MaxQuantity,
		logger.Component(a.log, "trading"))

	sessCtx, cancel := context.WithCancel(ctx)

	poller.Start(sessCtx)
	if err := sync.Start(sessCtx); err != nil {
		a.log.WithError(err).Error("failed to start candle synchronizer")
	}

	statusDone := a.watchHealth(sessCtx, sync)
	defer func() {
		cancel()
		sync.Close()
		poller.Close()
		<-statusDone
	}()

	dashboard.PrintStartup(cfg.Server.BaseURL, cfg.Trading.Duration, cfg.Trading.BarSize)
	fmt.Println("commands: status | buy [qty] | sell [qty] | close | export | logout | quit")

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return false
		case <-a.expired:
			a.health.SetAuthenticated(false)
			return true
		case line, ok := <-a.lines:
			if !ok {
				return false
			}
			if quit := a.handleCommand(sessCtx, line, dashboard, poller, sync, orders); quit {
				return false
			}
			if !a.sess.Authenticated() {
				a.health.SetAuthenticated(false)
				return true
			}
		}
	}
}

// handleCommand runs one operator command; returns true to quit the client
func (a *app) handleCommand(ctx context.Context, line string, dashboard *ui.Dashboard,
	poller *account.Poller, sync *market.Synchronizer, orders *trading.Orchestrator) bool {

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "logout":
		a.sess.Invalidate()
		return false

	case "status":
		if snap, ok := poller.Snapshot(); ok {
			dashboard.PrintSnapshot(snap)
		} else {
			fmt.Println("no position data yet")
		}
		if order, ok := orders.LastOrder(); ok {
			dashboard.PrintOrder(order)
		}
		fmt.Printf("stream: %s, bars: %d\n", sync.State(), sync.Series().Len())

	case "buy", "sell":
		side := types.OrderSideBuy
		if fields[0] == "sell" {
			side = types.OrderSideSell
		}
		qty := 1
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("quantity must be a number")
				return false
			}
			qty = n
		}
		a.placeOrder(ctx, dashboard, func(ctx context.Context) (*types.Order, error) {
			return orders.Submit(ctx, side, qty)
		})

	case "close":
		a.placeOrder(ctx, dashboard, orders.ClosePosition)

	case "export":
		path := fmt.Sprintf("exports/session_%s.xlsx", time.Now().Format("20060102_150405"))
		report := reporting.SessionReport{
			Symbol:  a.cfg.Trading.Symbol,
			Candles: sync.Series().Snapshot(),
		}
		if snap, ok := poller.Snapshot(); ok {
			report.Snapshot = &snap
		}
		if order, ok := orders.LastOrder(); ok {
			report.LastOrder = &order
		}
		if err := reporting.WriteSessionXLSX(report, path); err != nil {
			a.log.WithError(err).Error("export failed")
			fmt.Println("export failed, see log")
		} else {
			fmt.Printf("exported to %s\n", path)
		}

	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	return false
}

func (a *app) placeOrder(ctx context.Context, dashboard *ui.Dashboard,
	place func(context.Context) (*types.Order, error)) {

	order, err := place(ctx)
	if err != nil {
		if errs.IsSessionExpired(err) {
			return
		}
		fmt.Printf("order failed: %v\n", err)
		return
	}
	dashboard.PrintOrder(*order)
}

// watchHealth mirrors stream state into the health checker
func (a *app) watchHealth(ctx context.Context, sync *market.Synchronizer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.health.SetStreamConnected(sync.State() == market.StateLive)
			}
		}
	}()
	return done
}

// readLines pumps stdin lines into a channel so the command loop can also
// react to expiry and shutdown.
func readLines(f *os.File) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func next(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

func loadEnvFile(envFile string) {
	if _, err := os.Stat(envFile); err == nil {
		godotenv.Load(envFile)
	}
}
