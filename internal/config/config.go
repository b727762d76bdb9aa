package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Hardware driver names.
const (
	DriverLog    = "log"
	DriverModbus = "modbus"
)

const (
	envPrefix         = "SURFCLOCK"
	defaultConfigDir  = "configs"
	defaultConfigName = "config"
)

// Config is the whole runtime configuration. Every key has a default, so an
// absent configs/config.yml still yields a runnable clock.
type Config struct {
	Port     string         `mapstructure:"port"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Source   SourceConfig   `mapstructure:"source"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Display  DisplayConfig  `mapstructure:"display"`
	Strip    StripConfig    `mapstructure:"strip"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// SourceConfig describes the conditions endpoint and the receive side of the socket.
type SourceConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	SubregionID    string        `mapstructure:"subregion_id"`
	Days           int           `mapstructure:"days"`
	UserAgent      string        `mapstructure:"user_agent"`
	BufferSize     int           `mapstructure:"buffer_size"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"` // after a rendered cycle
	Backoff  time.Duration `mapstructure:"backoff"`  // after any failure
}

type DisplayConfig struct {
	// UTCOffsetSeconds is added to the server Date header to get wall-clock time.
	// Fixed offset, no DST.
	UTCOffsetSeconds int `mapstructure:"utc_offset_seconds"`
	Width            int `mapstructure:"width"`
	FontSize         int `mapstructure:"font_size"`
	GlyphWidth       int `mapstructure:"glyph_width"`
	TimeRow          int `mapstructure:"time_row"`
	LabelRow         int `mapstructure:"label_row"`
}

type StripConfig struct {
	Length         int           `mapstructure:"length"`
	ClearTimeout   time.Duration `mapstructure:"clear_timeout"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
}

type HardwareConfig struct {
	Driver string       `mapstructure:"driver"`
	Modbus ModbusConfig `mapstructure:"modbus"`
}

// ModbusConfig addresses an LED/display panel controller over Modbus TCP.
type ModbusConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	UnitID      uint8         `mapstructure:"unit_id"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PixelBase   uint16        `mapstructure:"pixel_base"`
	PixelCommit uint16        `mapstructure:"pixel_commit"`
	TextBase    uint16        `mapstructure:"text_base"`
	TextCommit  uint16        `mapstructure:"text_commit"`
	TextMaxRegs uint16        `mapstructure:"text_max_registers"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "surf_clock.db")

	v.SetDefault("source.host", "services.surfline.com")
	v.SetDefault("source.port", 80)
	v.SetDefault("source.subregion_id", "58581a836630e24c44878fd7")
	v.SetDefault("source.days", 1)
	v.SetDefault("source.user_agent", "esp-idf/1.0 esp32")
	v.SetDefault("source.buffer_size", 2048)
	v.SetDefault("source.receive_timeout", 5*time.Second)
	v.SetDefault("source.dial_timeout", 5*time.Second)

	v.SetDefault("schedule.interval", 10*time.Second)
	v.SetDefault("schedule.backoff", 10*time.Second)

	v.SetDefault("display.utc_offset_seconds", -25200)
	v.SetDefault("display.width", 128)
	v.SetDefault("display.font_size", 16)
	v.SetDefault("display.glyph_width", 16)
	v.SetDefault("display.time_row", 0)
	v.SetDefault("display.label_row", 42)

	v.SetDefault("strip.length", 30)
	v.SetDefault("strip.clear_timeout", 50*time.Millisecond)
	v.SetDefault("strip.refresh_timeout", 100*time.Millisecond)

	v.SetDefault("hardware.driver", DriverLog)
	v.SetDefault("hardware.modbus.unit_id", 1)
	v.SetDefault("hardware.modbus.timeout", 2*time.Second)
	v.SetDefault("hardware.modbus.pixel_base", 1000)
	v.SetDefault("hardware.modbus.pixel_commit", 999)
	v.SetDefault("hardware.modbus.text_base", 2000)
	v.SetDefault("hardware.modbus.text_commit", 1999)
	v.SetDefault("hardware.modbus.text_max_registers", 256)

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
}

// Load reads configuration from path, or from configs/config.{yml,yaml,toml,json}
// when path is empty. A missing default file is not an error; a missing explicit
// path is. Environment variables SURFCLOCK_<SECTION>_<KEY> override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(defaultConfigDir)
		v.SetConfigName(defaultConfigName)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Hardware.Driver = strings.ToLower(strings.TrimSpace(cfg.Hardware.Driver))
	return &cfg, nil
}

// Validate performs declarative checks only. It does not mutate the config.
func (c *Config) Validate() error {
	switch {
	case c.Source.Host == "":
		return errors.New("source.host is required")
	case c.Source.Port <= 0 || c.Source.Port > 65535:
		return fmt.Errorf("source.port %d out of range", c.Source.Port)
	case c.Source.SubregionID == "":
		return errors.New("source.subregion_id is required")
	case c.Source.Days <= 0:
		return errors.New("source.days must be greater than 0")
	case c.Source.BufferSize <= 0:
		return errors.New("source.buffer_size must be greater than 0")
	case c.Source.ReceiveTimeout <= 0:
		return errors.New("source.receive_timeout must be greater than 0")
	case c.Schedule.Interval <= 0:
		return errors.New("schedule.interval must be greater than 0")
	case c.Schedule.Backoff <= 0:
		return errors.New("schedule.backoff must be greater than 0")
	case c.Display.Width <= 0:
		return errors.New("display.width must be greater than 0")
	case c.Display.FontSize <= 0:
		return errors.New("display.font_size must be greater than 0")
	case c.Display.GlyphWidth <= 0:
		return errors.New("display.glyph_width must be greater than 0")
	case c.Strip.Length <= 0:
		return errors.New("strip.length must be greater than 0")
	}

	switch c.Hardware.Driver {
	case DriverLog:
	case DriverModbus:
		if c.Hardware.Modbus.Endpoint == "" {
			return errors.New("hardware.modbus.endpoint is required for the modbus driver")
		}
		if c.Hardware.Modbus.TextMaxRegs == 0 {
			return errors.New("hardware.modbus.text_max_registers must be greater than 0")
		}
	default:
		return fmt.Errorf("unknown hardware.driver %q (want %q or %q)", c.Hardware.Driver, DriverLog, DriverModbus)
	}
	return nil
}

// RequestPath is the conditions endpoint path for the configured subregion.
func (s SourceConfig) RequestPath() string {
	return fmt.Sprintf("/kbyg/regions/forecasts/conditions?subregionId=%s&days=%d", s.SubregionID, s.Days)
}

// Address is host:port for dialing.
func (s SourceConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Location is the fixed-offset zone used for the displayed time.
func (d DisplayConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+03d", d.UTCOffsetSeconds/3600), d.UTCOffsetSeconds)
}
