// Package config provides configuration management for krishi
package config

import (
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnvOverridePrefix is prepended to a key to override it from the environment
const EnvOverridePrefix = "KRISHI_"

// Runtime setting keys
const (
	KeyRAGTopK             = "RAG_TOP_K"
	KeyChatHistoryLimit    = "CHAT_HISTORY_LIMIT"
	KeyWeatherCacheMinutes = "WEATHER_CACHE_MINUTES"
	KeyAlertRainMM         = "ALERT_RAIN_MM"
	KeyAlertHeatC          = "ALERT_HEAT_C"
	KeyAlertFrostC         = "ALERT_FROST_C"
	KeyAlertWindMS         = "ALERT_WIND_MS"
)

// SystemConfiguration represents a runtime setting stored in the database
type SystemConfiguration struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;size:36"`
	Key         string    `json:"key" gorm:"uniqueIndex;not null;size:100"`
	Value       string    `json:"value" gorm:"type:text;not null"`
	Description *string   `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for SystemConfiguration
func (SystemConfiguration) TableName() string {
	return "system_configurations"
}

func (c *SystemConfiguration) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *SystemConfiguration) BeforeSave(tx *gorm.DB) error {
	c.Key = strings.TrimSpace(c.Key)
	if c.Key == "" {
		return errors.NewValidationError("key", "key is required")
	}
	if len(c.Key) > 100 {
		return errors.NewValidationError("key", "key must be at most 100 characters")
	}
	return nil
}

// ConfigService manages runtime settings
type ConfigService struct {
	db    *gorm.DB
	cache map[string]string
	mu    sync.RWMutex
}

// NewConfigService creates a new config service
func NewConfigService(db *gorm.DB) *ConfigService {
	svc := &ConfigService{
		db:    db,
		cache: make(map[string]string),
	}
	svc.loadCache()
	return svc
}

// loadCache loads all active values into memory
func (s *ConfigService) loadCache() {
	var configs []SystemConfiguration
	if err := s.db.Where(map[string]interface{}{"is_active": true}).Find(&configs).Error; err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = make(map[string]string, len(configs))
	for _, cfg := range configs {
		s.cache[cfg.Key] = cfg.Value
	}
}

// Reload drops the in-memory cache and reads every active value again
func (s *ConfigService) Reload() {
	s.loadCache()
}

// Get returns an active config value by key
func (s *ConfigService) Get(key string) string {
	// Check environment variable override first
	if envVal := os.Getenv(EnvOverridePrefix + key); envVal != "" {
		return envVal
	}

	s.mu.RLock()
	if val, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return val
	}
	s.mu.RUnlock()

	// Try database
	var cfg SystemConfiguration
	err := s.db.Where(map[string]interface{}{"key": key, "is_active": true}).First(&cfg).Error
	if err == nil {
		s.mu.Lock()
		s.cache[key] = cfg.Value
		s.mu.Unlock()
		return cfg.Value
	}

	return ""
}

// GetWithDefault returns a config value or default if not found
func (s *ConfigService) GetWithDefault(key, defaultValue string) string {
	if val := s.Get(key); val != "" {
		return val
	}
	return defaultValue
}

// GetInt returns a config value as int
func (s *ConfigService) GetInt(key string, defaultValue int) int {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
		return i
	}
	return defaultValue
}

// GetFloat returns a config value as float64
func (s *ConfigService) GetFloat(key string, defaultValue float64) float64 {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
		return f
	}
	return defaultValue
}

// GetBool returns a config value as bool
func (s *ConfigService) GetBool(key string, defaultValue bool) bool {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	val = strings.ToLower(strings.TrimSpace(val))
	return val == "true" || val == "1" || val == "yes"
}

// Lookup returns the stored entry for key, active or not
func (s *ConfigService) Lookup(key string) (*SystemConfiguration, error) {
	var cfg SystemConfiguration
	err := s.db.Where(map[string]interface{}{"key": key}).First(&cfg).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("config " + key)
		}
		return nil, errors.NewInternalError(err)
	}
	return &cfg, nil
}

// Set creates or replaces a config value and marks it active.
// A nil description leaves an existing description untouched.
func (s *ConfigService) Set(key, value string, description *string) (*SystemConfiguration, error) {
	key = strings.TrimSpace(key)

	var cfg SystemConfiguration
	err := s.db.Where(map[string]interface{}{"key": key}).First(&cfg).Error
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		cfg = SystemConfiguration{Key: key}
	case err != nil:
		return nil, errors.NewInternalError(err)
	}

	cfg.Value = value
	cfg.IsActive = true
	if description != nil {
		cfg.Description = description
	}

	// Upsert
	if err := s.db.Save(&cfg).Error; err != nil {
		var appErr errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, errors.NewInternalError(err)
	}

	// Update cache
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	return &cfg, nil
}

// Deactivate hides a key from Get without deleting it
func (s *ConfigService) Deactivate(key string) error {
	cfg, err := s.Lookup(key)
	if err != nil {
		return err
	}

	if err := s.db.Model(cfg).UpdateColumn("is_active", false).Error; err != nil {
		return errors.NewInternalError(err)
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	return nil
}

// List returns every stored entry ordered by key
func (s *ConfigService) List() ([]SystemConfiguration, error) {
	var configs []SystemConfiguration
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].Key < configs[j].Key
	})
	return configs, nil
}

// GenerateJWTSecret generates a secure random JWT secret
func GenerateJWTSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "krishi-fallback-secret-" + uuid.New().String()
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// Defaults are the runtime settings seeded on a fresh database
var Defaults = map[string]struct {
	Value       string
	Description string
}{
	KeyRAGTopK:             {"3", "Number of knowledge articles passed to the assistant"},
	KeyChatHistoryLimit:    {"10", "Number of previous chat messages included in a prompt"},
	KeyWeatherCacheMinutes: {"30", "Minutes a weather response is cached per location"},
	KeyAlertRainMM:         {"50", "Daily rainfall in mm that raises a heavy rain alert"},
	KeyAlertHeatC:          {"40", "Daily maximum temperature in C that raises a heatwave alert"},
	KeyAlertFrostC:         {"2", "Daily minimum temperature in C that raises a frost alert"},
	KeyAlertWindMS:         {"17", "Wind speed in m/s that raises a high wind alert"},
}

// SetupDefaults sets up default configuration values
func (s *ConfigService) SetupDefaults() error {
	for key, def := range Defaults {
		// Only set if not already stored, active or not
		if _, err := s.Lookup(key); err == nil {
			continue
		} else if !errors.IsNotFound(err) {
			return err
		}
		description := def.Description
		if _, err := s.Set(key, def.Value, &description); err != nil {
			return err
		}
	}
	return nil
}
