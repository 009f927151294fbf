package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/reelcut/internal/types"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "reelcut.yaml"

type Config struct {
	WorkDir     string `yaml:"work_dir"`
	Workers     int    `yaml:"workers"`
	KeepWorkDir bool   `yaml:"keep_work_dir"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`

	FFmpeg     FFmpegConfig         `yaml:"ffmpeg"`
	Encode     ffmpeg.EncodeProfile `yaml:"encode"`
	Captions   subtitles.Style      `yaml:"captions"`
	OpenRouter OpenRouterConfig     `yaml:"openrouter"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	FontsDir    string `yaml:"fonts_dir"`
}

type OpenRouterConfig struct {
	// APIKey only ever comes from the environment.
	APIKey       string   `yaml:"-"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

func Default() Config {
	return Config{
		WorkDir:   ".cache",
		Workers:   2,
		LogLevel:  "info",
		LogFormat: "console",
		FFmpeg: FFmpegConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Encode:   ffmpeg.DefaultProfile(),
		Captions: subtitles.DefaultStyle(),
		OpenRouter: OpenRouterConfig{
			Model:   "anthropic/claude-3.5-sonnet",
			BaseURL: "https://openrouter.ai",
		},
	}
}

// Load layers the YAML file over the defaults and the environment over both.
// An explicit path must exist; the default file is optional.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", types.ErrInputValidation, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("%w: config file %s", types.ErrMissingSource, path)
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("REELCUT_WORK_DIR")); v != "" {
		c.WorkDir = v
	}
	if v := strings.TrimSpace(getenv("REELCUT_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REELCUT_WORKERS=%q is not a number", types.ErrInputValidation, v)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(getenv("REELCUT_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	c.OpenRouter.APIKey = strings.TrimSpace(getenv("OPENROUTER_API_KEY"))
	if v := strings.TrimSpace(getenv("OPENROUTER_MODEL")); v != "" {
		c.OpenRouter.Model = v
	}
	if v := strings.TrimSpace(getenv("OPENROUTER_BASE_URL")); v != "" {
		c.OpenRouter.BaseURL = v
	}
	if v := getenv("OPENROUTER_ALLOWED_HOSTS"); strings.TrimSpace(v) != "" {
		c.OpenRouter.AllowedHosts = strings.Split(v, ",")
	}
	return nil
}

func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", types.ErrInputValidation, c.Workers)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: log_format must be console or json, got %q", types.ErrInputValidation, c.LogFormat)
	}
	if c.Encode.CRF < 0 || c.Encode.CRF > 51 {
		return fmt.Errorf("%w: encode.crf must be within 0..51, got %d", types.ErrInputValidation, c.Encode.CRF)
	}
	if c.Captions.Fontsize <= 0 {
		return fmt.Errorf("%w: captions.font_size must be > 0", types.ErrInputValidation)
	}
	return nil
}
