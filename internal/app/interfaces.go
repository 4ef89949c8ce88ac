package app

import (
	EventBus "github.com/asaskevich/EventBus"
	"github.com/estmator/estmator/config"
	"github.com/estmator/estmator/internal/mailer"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
	SaveSettings(settings map[string]interface{}) error
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// EventProvider provides the application event bus
type EventProvider interface {
	Bus() EventBus.Bus
}

// QuoteProvider provides the quote workflow and its mailer
type QuoteProvider interface {
	Quotes() *quoting.Service
	QuoteMailer() *mailer.QuoteMailer
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider
	EventProvider
	QuoteProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
