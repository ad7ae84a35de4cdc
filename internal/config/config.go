package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAGEMSG_AUDIO_DRIVER.
const EnvPrefix = "PAGEMSG"

// ConfigFileEnv names an optional yaml/json/toml config file.
const ConfigFileEnv = "PAGEMSG_CONFIG"

// Config stores runtime configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Slots     SlotsConfig     `mapstructure:"slots"`
	Session   SessionConfig   `mapstructure:"session"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Log       LogConfig       `mapstructure:"log"`
}

type StorageConfig struct {
	Dir          string `mapstructure:"dir" validate:"required"`
	MetadataFile string `mapstructure:"metadata_file" validate:"required"`
	TempDir      string `mapstructure:"temp_dir"`
}

type AudioConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=auto alsa portaudio noop"`
	InputDevice   string `mapstructure:"input_device"`
	OutputDevice  string `mapstructure:"output_device"`
	Device        string `mapstructure:"device"`
	RecordCommand string `mapstructure:"record_command" validate:"required"`
	PlayCommand   string `mapstructure:"play_command" validate:"required"`
	SampleRate    int    `mapstructure:"sample_rate" validate:"gte=8000,lte=192000"`
	Channels      int    `mapstructure:"channels" validate:"gte=1,lte=8"`
	PeriodSize    int    `mapstructure:"period_size" validate:"gte=32"`
	Format        string `mapstructure:"format" validate:"oneof=pcm alaw ulaw"`
}

type SlotsConfig struct {
	NumButtons         int      `mapstructure:"num_buttons" validate:"gte=1,lte=64"`
	DefaultMessageType string   `mapstructure:"default_message_type" validate:"required"`
	LegacyTypes        []string `mapstructure:"legacy_types"`
	LegacyPoolSize     int      `mapstructure:"legacy_pool_size" validate:"gte=1,lte=64"`
}

type SessionConfig struct {
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"gt=0"`
}

type TranscodeConfig struct {
	Engine  string        `mapstructure:"engine" validate:"oneof=ffmpeg builtin"`
	Command string        `mapstructure:"command" validate:"required"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// Load resolves configuration from .env, an optional config file, PAGEMSG_*
// environment variables and defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, home)

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		lenientNumberHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	normalize(&cfg)

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("storage.dir", filepath.Join(home, ".pagemsg", "storage"))
	v.SetDefault("storage.metadata_file", "")
	v.SetDefault("storage.temp_dir", "")

	v.SetDefault("audio.driver", "auto")
	v.SetDefault("audio.input_device", "")
	v.SetDefault("audio.output_device", "")
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.record_command", "arecord")
	v.SetDefault("audio.play_command", "aplay")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.period_size", 1024)
	v.SetDefault("audio.format", "pcm")

	v.SetDefault("slots.num_buttons", 16)
	v.SetDefault("slots.default_message_type", "custom_message")
	v.SetDefault("slots.legacy_types", []string{"away_message"})
	v.SetDefault("slots.legacy_pool_size", 4)

	v.SetDefault("session.stop_timeout", "5s")

	v.SetDefault("transcode.engine", "ffmpeg")
	v.SetDefault("transcode.command", "ffmpeg")
	v.SetDefault("transcode.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// normalize applies fallbacks and replaces unusable numbers with defaults.
func normalize(cfg *Config) {
	cfg.Storage.Dir = expandHome(strings.TrimSpace(cfg.Storage.Dir))
	cfg.Storage.MetadataFile = expandHome(strings.TrimSpace(cfg.Storage.MetadataFile))
	if cfg.Storage.MetadataFile == "" && cfg.Storage.Dir != "" {
		cfg.Storage.MetadataFile = filepath.Join(filepath.Dir(cfg.Storage.Dir), "metadata.json")
	}
	cfg.Storage.TempDir = expandHome(strings.TrimSpace(cfg.Storage.TempDir))

	cfg.Audio.Driver = strings.ToLower(strings.TrimSpace(cfg.Audio.Driver))
	if cfg.Audio.Driver == "" {
		cfg.Audio.Driver = "auto"
	}
	cfg.Audio.InputDevice = firstNonEmpty(cfg.Audio.InputDevice, cfg.Audio.Device, "default")
	cfg.Audio.OutputDevice = firstNonEmpty(cfg.Audio.OutputDevice, cfg.Audio.Device, "default")
	cfg.Audio.Format = strings.ToLower(strings.TrimSpace(cfg.Audio.Format))
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.PeriodSize <= 0 {
		cfg.Audio.PeriodSize = 1024
	}

	if cfg.Slots.NumButtons <= 0 {
		cfg.Slots.NumButtons = 16
	}
	if cfg.Slots.LegacyPoolSize <= 0 {
		cfg.Slots.LegacyPoolSize = 4
	}
	cfg.Slots.DefaultMessageType = firstNonEmpty(cfg.Slots.DefaultMessageType, "custom_message")
	legacy := cfg.Slots.LegacyTypes[:0]
	for _, t := range cfg.Slots.LegacyTypes {
		if t = strings.TrimSpace(t); t != "" {
			legacy = append(legacy, t)
		}
	}
	cfg.Slots.LegacyTypes = legacy

	if cfg.Session.StopTimeout <= 0 {
		cfg.Session.StopTimeout = 5 * time.Second
	}

	cfg.Transcode.Engine = strings.ToLower(strings.TrimSpace(cfg.Transcode.Engine))
	cfg.Transcode.Command = firstNonEmpty(cfg.Transcode.Command, "ffmpeg")
	if cfg.Transcode.Timeout <= 0 {
		cfg.Transcode.Timeout = 10 * time.Second
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = expandHome(strings.TrimSpace(cfg.Log.File))
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups < 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays < 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// lenientNumberHook decodes unparsable numeric strings as zero so normalize
// can substitute the default.
func lenientNumberHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		switch {
		case to == durationType:
			if d, err := time.ParseDuration(raw); err == nil {
				return d, nil
			}
			if ms, err := strconv.Atoi(raw); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
			return time.Duration(0), nil
		case to.Kind() == reflect.Int:
			if n, err := strconv.Atoi(raw); err == nil {
				return n, nil
			}
			return 0, nil
		}
		return data, nil
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
