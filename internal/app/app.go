package app

import (
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/estmator/estmator/config"
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/mailer"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig     *config.AppConfig
	gormDB        *gorm.DB
	sched         *cron.Cron
	configManager *ConfigManager
	bus           EventBus.Bus
	quotes        *quoting.Service
	quoteMailer   *mailer.QuoteMailer
	mailSender    mailer.Sender
}

// Ensure Application implements all interfaces
var (
	_ DBProvider            = (*Application)(nil)
	_ ConfigProvider        = (*Application)(nil)
	_ SettingsProvider      = (*Application)(nil)
	_ SchedulerProvider     = (*Application)(nil)
	_ ConfigManagerProvider = (*Application)(nil)
	_ EventProvider         = (*Application)(nil)
	_ QuoteProvider         = (*Application)(nil)
	_ AppContext            = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// OverrideMailSender replaces the mail transport (used in tests).
// Call before Init.
func (a *Application) OverrideMailSender(s mailer.Sender) {
	a.mailSender = s
}

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	// Initialize database connection
	if a.gormDB == nil {
		if cfg.Database.Type == "" {
			cfg.Database.Type = "postgres"
		}
		a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
		zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)
	}

	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.checkSuper()
	a.checkSettings()
	a.checkGlobalVars()
	a.checkCatalog()

	a.configManager = NewConfigManager(a)

	a.bus = EventBus.New()
	a.subscribeAudit()

	if a.mailSender == nil {
		a.mailSender = mailer.NewSender(cfg.Mail)
	}
	a.quoteMailer = mailer.NewQuoteMailer(a.mailSender, cfg.Mail, cfg.Web.BaseURL)
	repo := quoting.NewGormRepository(a.gormDB)
	a.quotes = quoting.NewService(repo, repo, a.bus, a.quoteMailer)

	a.initJob()
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.OutputPaths = []string{"stdout"}

	var logger *zap.Logger
	var err error
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
	a.checkSuper()
	a.checkSettings()
	a.checkGlobalVars()
	a.checkCatalog()
}

// ConfigMgr returns the configuration manager
func (a *Application) ConfigMgr() *ConfigManager {
	return a.configManager
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

// Bus returns the application event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// Quotes returns the quote service
func (a *Application) Quotes() *quoting.Service {
	return a.quotes
}

// QuoteMailer returns the quote link mailer
func (a *Application) QuoteMailer() *mailer.QuoteMailer {
	return a.quoteMailer
}

// GetSettingsStringValue retrieves a string configuration value
func (a *Application) GetSettingsStringValue(category, key string) string {
	return a.configManager.GetString(category, key)
}

// GetSettingsInt64Value retrieves an int64 configuration value
func (a *Application) GetSettingsInt64Value(category, key string) int64 {
	return a.configManager.GetInt64(category, key)
}

// GetSettingsBoolValue retrieves a boolean configuration value
func (a *Application) GetSettingsBoolValue(category, key string) bool {
	return a.configManager.GetBool(category, key)
}

// SaveSettings saves settings given as "category.name" keys
func (a *Application) SaveSettings(settings map[string]interface{}) error {
	for key, value := range settings {
		category, name, ok := splitSettingKey(key)
		if !ok {
			zap.L().Warn("invalid setting key", zap.String("key", key))
			continue
		}
		if err := a.configManager.Set(category, name, cast.ToString(value)); err != nil {
			return err
		}
	}
	return nil
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bus != nil {
		a.bus.WaitAsync()
	}
	_ = zap.L().Sync()
}
