package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Every invocation (HTTP server or
// a single crontab fire) loads it once and passes values down explicitly.
type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Control   ControlConfig   `mapstructure:"control"`
	ReadyBy   ReadyByConfig   `mapstructure:"ready_by"`
	Thermal   ThermalConfig   `mapstructure:"thermal"`
	Equipment EquipmentConfig `mapstructure:"equipment"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Sensor    SensorConfig    `mapstructure:"sensor"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Timezone  TimezoneConfig  `mapstructure:"timezone"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// Dir helpers mirror the on-disk layout of the deployed backend.
func (s StorageConfig) JobsDir() string {
	return filepath.Join(s.Root, "scheduled-jobs")
}

func (s StorageConfig) StateDir() string {
	return filepath.Join(s.Root, "state")
}

func (s StorageConfig) LogsDir() string {
	return filepath.Join(s.Root, "logs")
}

func (s StorageConfig) BackupDir() string {
	return filepath.Join(s.Root, "crontab-backups")
}

func (s StorageConfig) JobLog() string {
	return filepath.Join(s.LogsDir(), "cron-jobs.log")
}

func (s StorageConfig) ForensicLog() string {
	return filepath.Join(s.LogsDir(), "crontab-forensic.log")
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type CronConfig struct {
	Binary       string        `mapstructure:"binary"`
	WorkDir      string        `mapstructure:"work_dir"`
	Backup       bool          `mapstructure:"backup"`
	MaxBackups   int           `mapstructure:"max_backups"`
	OrphanMinAge time.Duration `mapstructure:"orphan_min_age"`
	// RegenerateAt is the daily HH:MM±HH:MM time characteristics are rebuilt.
	RegenerateAt string `mapstructure:"regenerate_at"`
}

type ControlConfig struct {
	MinTargetF     float64       `mapstructure:"min_target_f"`
	MaxTargetF     float64       `mapstructure:"max_target_f"`
	ToleranceF     float64       `mapstructure:"tolerance_f"`
	CheckInterval  time.Duration `mapstructure:"check_interval"`
	MinMargin      time.Duration `mapstructure:"min_margin"`
	SweepDelay     time.Duration `mapstructure:"sweep_delay"`
	LockBackoffMin time.Duration `mapstructure:"lock_backoff_min"`
	LockBackoffMax time.Duration `mapstructure:"lock_backoff_max"`
}

type ReadyByConfig struct {
	ColdStartFloorF        float64       `mapstructure:"cold_start_floor_f"`
	SafetyMargin           time.Duration `mapstructure:"safety_margin"`
	DefaultVelocityFPerMin float64       `mapstructure:"default_velocity_f_per_min"`
	DefaultStartupLagMin   float64       `mapstructure:"default_startup_lag_min"`
}

type ThermalConfig struct {
	TemperatureLog string `mapstructure:"temperature_log"`
	EquipmentLog   string `mapstructure:"equipment_log"`
	DayStartHour   int    `mapstructure:"day_start_hour"`
	NightStartHour int    `mapstructure:"night_start_hour"`
}

type EquipmentConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookKey     string        `mapstructure:"webhook_key"`
	HeaterOn       string        `mapstructure:"heater_on_event"`
	HeaterOff      string        `mapstructure:"heater_off_event"`
	PumpRun        string        `mapstructure:"pump_run_event"`
	DryRun         bool          `mapstructure:"dry_run"`
	RatePerSec     float64       `mapstructure:"rate_per_sec"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type MonitorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	Grace   time.Duration `mapstructure:"grace"`
}

type SensorConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type TimezoneConfig struct {
	DescriptorFile string `mapstructure:"descriptor_file"`
	LocaltimeLink  string `mapstructure:"localtime_link"`
}

// SimulatorConfig drives the dry-run tub model that feeds readings while
// no sensor is attached.
type SimulatorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Tick            time.Duration `mapstructure:"tick"`
	DeviceID        string        `mapstructure:"device_id"`
	StartTempF      float64       `mapstructure:"start_temp_f"`
	AmbientF        float64       `mapstructure:"ambient_f"`
	VelocityFPerMin float64       `mapstructure:"velocity_f_per_min"`
	CoolingK        float64       `mapstructure:"cooling_k"`
}

// Default configuration values.
var defaultConfig = Config{
	Port:     "8080",
	LogLevel: "info",
	Storage:  StorageConfig{Root: "storage"},
	DB:       DBConfig{Path: "storage/app.db"},
	Cron: CronConfig{
		Binary:       "/usr/local/bin/hottubctl",
		WorkDir:      ".",
		Backup:       true,
		MaxBackups:   50,
		OrphanMinAge: time.Hour,
		RegenerateAt: "03:15+00:00",
	},
	Control: ControlConfig{
		MinTargetF:     80,
		MaxTargetF:     110,
		ToleranceF:     0.1,
		CheckInterval:  time.Minute,
		MinMargin:      15 * time.Second,
		SweepDelay:     2 * time.Second,
		LockBackoffMin: 50 * time.Millisecond,
		LockBackoffMax: 250 * time.Millisecond,
	},
	ReadyBy: ReadyByConfig{
		ColdStartFloorF:        58,
		SafetyMargin:           15 * time.Minute,
		DefaultVelocityFPerMin: 0.05,
		DefaultStartupLagMin:   10,
	},
	Thermal: ThermalConfig{
		DayStartHour:   6,
		NightStartHour: 22,
	},
	Equipment: EquipmentConfig{
		WebhookURL:     "https://maker.ifttt.com/trigger",
		HeaterOn:       "hot-tub-heat-on",
		HeaterOff:      "hot-tub-heat-off",
		PumpRun:        "cycle_hot_tub_ionizer",
		RatePerSec:     1,
		RequestTimeout: 15 * time.Second,
	},
	Monitor: MonitorConfig{
		APIURL: "https://healthchecks.io/api/v3",
		Grace:  30 * time.Minute,
	},
	Sensor: SensorConfig{MaxAge: 30 * time.Minute},
	Auth:   AuthConfig{TokenTTL: time.Hour},
	Timezone: TimezoneConfig{
		DescriptorFile: "/etc/timezone",
		LocaltimeLink:  "/etc/localtime",
	},
	Simulator: SimulatorConfig{
		Tick:            time.Minute,
		DeviceID:        "simulator",
		StartTempF:      90,
		AmbientF:        55,
		VelocityFPerMin: 0.08,
		CoolingK:        0.0009,
	},
}

// Default returns a copy of the built-in defaults.
func Default() Config {
	return defaultConfig
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("storage.root", d.Storage.Root)
	v.SetDefault("db.path", d.DB.Path)

	v.SetDefault("cron.binary", d.Cron.Binary)
	v.SetDefault("cron.work_dir", d.Cron.WorkDir)
	v.SetDefault("cron.backup", d.Cron.Backup)
	v.SetDefault("cron.max_backups", d.Cron.MaxBackups)
	v.SetDefault("cron.orphan_min_age", d.Cron.OrphanMinAge)
	v.SetDefault("cron.regenerate_at", d.Cron.RegenerateAt)

	v.SetDefault("control.min_target_f", d.Control.MinTargetF)
	v.SetDefault("control.max_target_f", d.Control.MaxTargetF)
	v.SetDefault("control.tolerance_f", d.Control.ToleranceF)
	v.SetDefault("control.check_interval", d.Control.CheckInterval)
	v.SetDefault("control.min_margin", d.Control.MinMargin)
	v.SetDefault("control.sweep_delay", d.Control.SweepDelay)
	v.SetDefault("control.lock_backoff_min", d.Control.LockBackoffMin)
	v.SetDefault("control.lock_backoff_max", d.Control.LockBackoffMax)

	v.SetDefault("ready_by.cold_start_floor_f", d.ReadyBy.ColdStartFloorF)
	v.SetDefault("ready_by.safety_margin", d.ReadyBy.SafetyMargin)
	v.SetDefault("ready_by.default_velocity_f_per_min", d.ReadyBy.DefaultVelocityFPerMin)
	v.SetDefault("ready_by.default_startup_lag_min", d.ReadyBy.DefaultStartupLagMin)

	v.SetDefault("thermal.temperature_log", d.Thermal.TemperatureLog)
	v.SetDefault("thermal.equipment_log", d.Thermal.EquipmentLog)
	v.SetDefault("thermal.day_start_hour", d.Thermal.DayStartHour)
	v.SetDefault("thermal.night_start_hour", d.Thermal.NightStartHour)

	v.SetDefault("equipment.webhook_url", d.Equipment.WebhookURL)
	v.SetDefault("equipment.webhook_key", d.Equipment.WebhookKey)
	v.SetDefault("equipment.heater_on_event", d.Equipment.HeaterOn)
	v.SetDefault("equipment.heater_off_event", d.Equipment.HeaterOff)
	v.SetDefault("equipment.pump_run_event", d.Equipment.PumpRun)
	v.SetDefault("equipment.dry_run", d.Equipment.DryRun)
	v.SetDefault("equipment.rate_per_sec", d.Equipment.RatePerSec)
	v.SetDefault("equipment.request_timeout", d.Equipment.RequestTimeout)

	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.api_url", d.Monitor.APIURL)
	v.SetDefault("monitor.api_key", d.Monitor.APIKey)
	v.SetDefault("monitor.grace", d.Monitor.Grace)

	v.SetDefault("sensor.max_age", d.Sensor.MaxAge)
	v.SetDefault("auth.signing_key", d.Auth.SigningKey)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("timezone.descriptor_file", d.Timezone.DescriptorFile)
	v.SetDefault("timezone.localtime_link", d.Timezone.LocaltimeLink)

	v.SetDefault("simulator.enabled", d.Simulator.Enabled)
	v.SetDefault("simulator.tick", d.Simulator.Tick)
	v.SetDefault("simulator.device_id", d.Simulator.DeviceID)
	v.SetDefault("simulator.start_temp_f", d.Simulator.StartTempF)
	v.SetDefault("simulator.ambient_f", d.Simulator.AmbientF)
	v.SetDefault("simulator.velocity_f_per_min", d.Simulator.VelocityFPerMin)
	v.SetDefault("simulator.cooling_k", d.Simulator.CoolingK)
}

// Load reads configs/config.yml (or the explicit file when path is non-empty),
// applies HOTTUB_* environment overrides and unmarshals into Config.
// A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs") // configs/config.yml
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("HOTTUB")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the control loop cannot run with.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return errors.New("storage.root must not be empty")
	}
	if c.Control.MinTargetF >= c.Control.MaxTargetF {
		return fmt.Errorf("control.min_target_f (%.1f) must be below control.max_target_f (%.1f)",
			c.Control.MinTargetF, c.Control.MaxTargetF)
	}
	if c.Control.CheckInterval < time.Minute {
		return fmt.Errorf("control.check_interval must be at least 1m, got %s", c.Control.CheckInterval)
	}
	if c.Control.LockBackoffMax < c.Control.LockBackoffMin {
		return errors.New("control.lock_backoff_max must not be below control.lock_backoff_min")
	}
	if c.Thermal.DayStartHour < 0 || c.Thermal.NightStartHour > 23 || c.Thermal.DayStartHour >= c.Thermal.NightStartHour {
		return fmt.Errorf("thermal day/night hours invalid: day=%d night=%d", c.Thermal.DayStartHour, c.Thermal.NightStartHour)
	}
	if c.Simulator.Enabled && c.Simulator.Tick <= 0 {
		return errors.New("simulator.tick must be positive")
	}
	return nil
}
