package app

import (
	_ "embed"
	"sync"

	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/pkg/common"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

//go:embed config_schemas.json
var configSchemasData []byte

// ConfigSchema describes one runtime setting and its default
type ConfigSchema struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type ConfigSchemasJSON struct {
	Schemas []ConfigSchema `json:"schemas"`
}

// ConfigManager caches sys_config rows keyed by category and name
type ConfigManager struct {
	db    DBProvider
	mu    sync.RWMutex
	cache map[string]map[string]string
}

func NewConfigManager(db DBProvider) *ConfigManager {
	m := &ConfigManager{db: db}
	m.Reload()
	return m
}

// Reload re-reads all settings from the database
func (m *ConfigManager) Reload() {
	var rows []domain.SysConfig
	if err := m.db.DB().Order("sort ASC").Find(&rows).Error; err != nil {
		zap.L().Error("load settings failed", zap.Error(err), zap.String("namespace", "app"))
		return
	}
	cache := make(map[string]map[string]string)
	for _, r := range rows {
		if cache[r.Type] == nil {
			cache[r.Type] = make(map[string]string)
		}
		cache[r.Type][r.Name] = r.Value
	}
	m.mu.Lock()
	m.cache = cache
	m.mu.Unlock()
}

func (m *ConfigManager) get(category, name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.cache[category][name]
	return v, ok
}

func (m *ConfigManager) GetString(category, name string) string {
	v, _ := m.get(category, name)
	return v
}

func (m *ConfigManager) GetInt(category, name string) int {
	v, _ := m.get(category, name)
	return cast.ToInt(v)
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	v, _ := m.get(category, name)
	return cast.ToInt64(v)
}

func (m *ConfigManager) GetBool(category, name string) bool {
	v, _ := m.get(category, name)
	return cast.ToBool(v)
}

// Set stores a setting and refreshes the cache entry
func (m *ConfigManager) Set(category, name, value string) error {
	db := m.db.DB()
	res := db.Model(&domain.SysConfig{}).
		Where("type = ? AND name = ?", category, name).
		Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if err := db.Create(&domain.SysConfig{ID: common.UUIDint64(), Type: category, Name: name, Value: value}).Error; err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.cache == nil {
		m.cache = make(map[string]map[string]string)
	}
	if m.cache[category] == nil {
		m.cache[category] = make(map[string]string)
	}
	m.cache[category][name] = value
	m.mu.Unlock()
	return nil
}

// All returns a copy of the cached settings
func (m *ConfigManager) All() map[string]map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]string, len(m.cache))
	for cat, values := range m.cache {
		out[cat] = make(map[string]string, len(values))
		for k, v := range values {
			out[cat][k] = v
		}
	}
	return out
}

// Decode fills out from the settings of one category. Field names match
// setting names through mapstructure tags; string values are converted.
func (m *ConfigManager) Decode(category string, out interface{}) error {
	m.mu.RLock()
	values := make(map[string]string, len(m.cache[category]))
	for k, v := range m.cache[category] {
		values[k] = v
	}
	m.mu.RUnlock()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}
