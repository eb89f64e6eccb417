// Krishi - Farming assistant backend
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aethra/krishi/internal/api"
	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/cache"
	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/database"
	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/llm"
	"github.com/aethra/krishi/internal/logging"
	"github.com/aethra/krishi/internal/notify"
	"github.com/aethra/krishi/internal/scheduler"
	"github.com/aethra/krishi/internal/usage"
	"github.com/aethra/krishi/internal/weather"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Version = "1.0.0"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if err := run(cmd); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func run(cmd string) error {
	switch cmd {
	case "serve":
		return startServer()
	case "migrate":
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer a.close()
		if err := database.RunMigrations(a.db, a.log); err != nil {
			return err
		}
		fmt.Println("Migrations complete")
		return nil
	case "user":
		return runUserCmd()
	case "config":
		return runConfigCmd()
	case "alerts":
		return runAlertsCmd()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Println(`Usage: krishi <command>
Commands:
  serve                                              Start server (default)
  migrate                                            Run migrations
  user list                                          List accounts
  user create --username= --email= --password= [--staff]  Create account
  config list                                        List runtime settings
  config set --key= --value= [--description=]        Set a runtime setting
  alerts evaluate                                    Evaluate weather alerts for every farm
  alerts dispatch                                    Send pending weather alerts`)
}

// =============================================================================
// WIRING
// =============================================================================

type app struct {
	cfg   *config.Config
	log   *zap.Logger
	db    *gorm.DB
	store cache.Store
}

// bootstrap loads configuration and opens the database. With migrate set,
// pending migrations run before returning.
func bootstrap(migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	if migrate {
		if err := database.RunMigrations(db, logger); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("migrations complete")
	}

	return &app{cfg: cfg, log: logger, db: db}, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

type services struct {
	settings  *config.ConfigService
	jwt       *auth.JWTService
	accounts  *engine.AccountEngine
	farms     *engine.FarmEngine
	ledger    *engine.LedgerEngine
	weather   *engine.WeatherEngine
	chat      *engine.ChatEngine
	knowledge *engine.KnowledgeEngine
	usage     *engine.UsageEngine
}

func (a *app) services(ctx context.Context) (*services, error) {
	store, err := cache.New(a.cfg.Redis, a.log)
	if err != nil {
		return nil, err
	}
	a.store = store

	settings := config.NewConfigService(a.db)
	recorder := usage.NewDBRecorder(a.db, a.log)

	generator, err := llm.New(ctx, a.cfg.LLM, recorder, a.log)
	if err != nil {
		return nil, err
	}
	a.log.Info("answer generator ready", zap.String("provider", generator.Name()))

	forecasts := weather.NewCachedClient(
		weather.NewOpenWeather(a.cfg.Weather, recorder, a.log),
		store,
		func() time.Duration {
			return time.Duration(settings.GetInt(config.KeyWeatherCacheMinutes, 30)) * time.Minute
		},
		a.log,
	)

	var sms notify.SMSSender = notify.Disabled{}
	if a.cfg.SMS.Enabled() {
		sms = notify.NewTwilio(a.cfg.SMS, recorder, a.log)
	} else {
		a.log.Info("sms alerts disabled, twilio is not configured")
	}
	var email notify.EmailSender = notify.Disabled{}
	if a.cfg.SMTP.Enabled() {
		email = notify.NewMailer(a.cfg.SMTP, recorder, a.log)
	} else {
		a.log.Info("email alerts disabled, smtp is not configured")
	}

	jwt := auth.NewJWTService(a.cfg.Auth, store)
	farms := engine.NewFarmEngine(a.db, a.log)

	return &services{
		settings:  settings,
		jwt:       jwt,
		accounts:  engine.NewAccountEngine(a.db, jwt, a.log),
		farms:     farms,
		ledger:    engine.NewLedgerEngine(a.db, a.log),
		weather:   engine.NewWeatherEngine(a.db, forecasts, settings, farms, sms, email, a.log),
		chat:      engine.NewChatEngine(a.db, generator, settings, a.log),
		knowledge: engine.NewKnowledgeEngine(a.db, a.log),
		usage:     engine.NewUsageEngine(a.db),
	}, nil
}

// =============================================================================
// SERVER
// =============================================================================

func startServer() error {
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.close()
	a.log.Info("krishi starting", zap.String("version", Version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := a.services(ctx)
	if err != nil {
		return err
	}

	if a.cfg.Server.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	api.Version = Version

	limiter := api.NewLoginRateLimiter()
	go limiter.Run(ctx)

	router := api.SetupRouter(a.cfg.CORS, a.log,
		api.NewHandler(a.db, svc.farms, svc.ledger, svc.weather, svc.chat, svc.jwt, a.log),
		api.NewAdminHandler(svc.settings, svc.accounts, svc.knowledge, svc.usage, svc.weather),
		api.NewAuthHandler(svc.accounts, limiter),
	)

	if a.cfg.Scheduler.Enabled {
		jobs, err := scheduler.New(a.log)
		if err != nil {
			return err
		}
		err = jobs.Every("weather-alerts", a.cfg.Scheduler.Interval, scheduler.Sequence(
			func(ctx context.Context) error {
				_, err := svc.weather.EvaluateAlerts(ctx)
				return err
			},
			func(ctx context.Context) error {
				_, err := svc.weather.DispatchAlerts(ctx)
				return err
			},
		))
		if err != nil {
			return err
		}
		jobs.Start()
		defer func() {
			if err := jobs.Shutdown(); err != nil {
				a.log.Warn("scheduler shutdown failed", zap.Error(err))
			}
		}()
		a.log.Info("alert scheduler started", zap.Duration("interval", a.cfg.Scheduler.Interval))
	}

	srv := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// =============================================================================
// CLI
// =============================================================================

func runUserCmd() error {
	if len(os.Args) < 3 {
		printUsage()
		return nil
	}
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := context.Background()
	svc, err := a.services(ctx)
	if err != nil {
		return err
	}

	switch os.Args[2] {
	case "list":
		accounts, err := svc.accounts.ListAccounts(ctx)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			role := "farmer"
			if acc.IsStaff {
				role = "staff"
			}
			fmt.Printf("%s <%s> %s active=%t\n", acc.Username, acc.Email, role, acc.IsActive)
		}
	case "create":
		username, email, password := getFlag("--username"), getFlag("--email"), getFlag("--password")
		if username == "" || password == "" {
			printUsage()
			return nil
		}
		account, err := svc.accounts.CreateAccount(ctx, engine.RegisterInput{
			Username:  username,
			Email:     email,
			Password:  password,
			FirstName: getFlag("--first"),
			LastName:  getFlag("--last"),
			IsStaff:   hasFlag("--staff"),
		})
		if err != nil {
			return err
		}
		fmt.Printf("User created: %s (%s)\n", account.Username, account.ID)
	default:
		printUsage()
	}
	return nil
}

func runConfigCmd() error {
	if len(os.Args) < 3 {
		printUsage()
		return nil
	}
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.close()
	settings := config.NewConfigService(a.db)

	switch os.Args[2] {
	case "list":
		configs, err := settings.List()
		if err != nil {
			return err
		}
		for _, c := range configs {
			state := "active"
			if !c.IsActive {
				state = "inactive"
			}
			fmt.Printf("%s=%s (%s)\n", c.Key, c.Value, state)
		}
	case "set":
		key, value := getFlag("--key"), getFlag("--value")
		if key == "" || value == "" {
			printUsage()
			return nil
		}
		var description *string
		if d := getFlag("--description"); d != "" {
			description = &d
		}
		if _, err := settings.Set(key, value, description); err != nil {
			return err
		}
		fmt.Printf("Config set: %s=%s\n", key, value)
	default:
		printUsage()
	}
	return nil
}

func runAlertsCmd() error {
	if len(os.Args) < 3 {
		printUsage()
		return nil
	}
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := context.Background()
	svc, err := a.services(ctx)
	if err != nil {
		return err
	}

	switch os.Args[2] {
	case "evaluate":
		res, err := svc.weather.EvaluateAlerts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Farms: %d, created: %d, skipped: %d, failed: %d\n", res.Farms, res.Created, res.Skipped, res.Failed)
	case "dispatch":
		res, err := svc.weather.DispatchAlerts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Alerts: %d, sms sent: %d, emails sent: %d, failed: %d\n", res.Alerts, res.SMSSent, res.EmailsSent, res.Failed)
	default:
		printUsage()
	}
	return nil
}

func getFlag(name string) string {
	prefix := name + "="
	for _, arg := range os.Args {
		if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
			return arg[len(prefix):]
		}
	}
	return ""
}

func hasFlag(name string) bool {
	for _, arg := range os.Args {
		if arg == name {
			return true
		}
	}
	return false
}
