package storyengine

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eringen/storyengine/asset"
	"github.com/eringen/storyengine/blob"
	"github.com/eringen/storyengine/bundle"
	"github.com/eringen/storyengine/compose"
	"github.com/eringen/storyengine/logger"
	"github.com/eringen/storyengine/oracle"
)

// Storage drivers.
const (
	DriverS3     = "s3"
	DriverDir    = "dir"
	DriverMemory = "memory"
)

// Config holds all configuration for a storyengine instance.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Site        SiteConfig         `yaml:"site"`
	Storage     StorageConfig      `yaml:"storage"`
	Assets      asset.Config       `yaml:"assets"`
	Template    TemplateConfig     `yaml:"template"`
	Oracle      oracle.Config      `yaml:"oracle"`
	Attribution compose.Directory  `yaml:"attribution"`
	Categories  compose.Categories `yaml:"categories"`
	Languages   []string           `yaml:"languages" env:"LANGUAGES"`
	UploadHTML  bool               `yaml:"upload_html" env:"UPLOAD_HTML"`
	Log         logger.Config      `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr       string        `yaml:"addr" env:"ADDR"`
	BodyLimit  string        `yaml:"body_limit"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// SiteConfig describes the publisher.
type SiteConfig struct {
	Name         string `yaml:"name" env:"SITE_NAME"`
	PublisherID  int    `yaml:"publisher_id"`
	LogoLink     string `yaml:"logo_link"`
	StoryBase    string `yaml:"story_base" env:"STORY_BASE"`
	RenderedBase string `yaml:"rendered_base" env:"RENDERED_BASE"`
}

// StorageConfig selects and configures the blob store.
type StorageConfig struct {
	Driver     string           `yaml:"driver" env:"STORAGE_DRIVER"`
	S3         blob.S3Config    `yaml:",inline"`
	HTMLBucket string           `yaml:"html_bucket" env:"HTML_BUCKET"`
	Root       string           `yaml:"root" env:"STORAGE_ROOT"`
	Retry      blob.RetryConfig `yaml:"retry"`
}

// TemplateConfig locates the master template.
type TemplateConfig struct {
	// Path is the master template file. Empty means the embedded default.
	Path     string        `yaml:"path" env:"TEMPLATE_PATH"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Strict   bool          `yaml:"strict" env:"TEMPLATE_STRICT"`
	// RepairPrefix selects the href/src values unwrapped by the brace repair.
	RepairPrefix string `yaml:"repair_prefix" env:"TEMPLATE_REPAIR_PREFIX"`
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10M"
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = 10
	}
	if c.Server.RateWindow <= 0 {
		c.Server.RateWindow = time.Minute
	}

	if c.Site.Name == "" {
		c.Site.Name = "Suvichaar"
	}
	if c.Site.PublisherID == 0 {
		c.Site.PublisherID = 3
	}
	if c.Site.LogoLink == "" {
		c.Site.LogoLink = bundle.DefaultLogoLink
	}
	if c.Site.StoryBase == "" {
		c.Site.StoryBase = "https://suvichaar.org/stories/"
	}
	if c.Site.RenderedBase == "" {
		c.Site.RenderedBase = "https://stories.suvichaar.org/"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverDir
	}
	if c.Storage.HTMLBucket == "" {
		c.Storage.HTMLBucket = "suvichaarstories"
	}
	if c.Storage.Root == "" {
		c.Storage.Root = "data/blob"
	}

	if c.Assets.RenderedBase == "" {
		c.Assets.RenderedBase = c.Site.RenderedBase
	}
	if c.Assets.Bucket == "" {
		c.Assets.Bucket = "suvichaar-media"
	}
	c.Assets.SetDefaults()

	if c.Template.CacheTTL == 0 {
		c.Template.CacheTTL = 5 * time.Minute
	}
	if c.Template.RepairPrefix == "" {
		c.Template.RepairPrefix = "https://"
	}

	c.Oracle.SetDefaults()

	if len(c.Attribution) == 0 {
		c.Attribution = compose.DefaultDirectory()
	}
	if len(c.Categories) == 0 {
		c.Categories = compose.DefaultCategories()
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"en-US", "hi"}
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	return validation.Errors{
		"storage.driver": validation.Validate(c.Storage.Driver,
			validation.Required, validation.In(DriverS3, DriverDir, DriverMemory)),
		"storage.endpoint": validation.Validate(c.Storage.S3.Endpoint,
			validation.When(c.Storage.Driver == DriverS3, validation.Required)),
		"assets.bucket": validation.Validate(c.Assets.Bucket, validation.Required),
		"server.addr":   validation.Validate(c.Server.Addr, validation.Required),
	}.Filter()
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// fills defaults. An empty path skips the file. .env files are loaded first:
// ENV_FILE alone when set, otherwise .env.local then .env.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if err := loadEnvFiles(); err != nil {
		return cfg, fmt.Errorf("load environment files: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetConfigPath returns CONFIG_PATH when set, else defaultPath.
func GetConfigPath(defaultPath string) string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return defaultPath
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	// godotenv never overrides variables that are already set, so .env.local
	// wins over .env.
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvOverrides sets every field tagged `env:"NAME"` from a non-empty
// environment variable, descending into nested structs.
func applyEnvOverrides(cfg any) {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	applyEnvToStruct(v)
}

func applyEnvToStruct(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			applyEnvToStruct(field)
			continue
		}

		if field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			applyEnvToStruct(field.Elem())
			continue
		}

		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		if val := os.Getenv(name); val != "" {
			setFieldFromString(field, val)
		}
	}
}

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
		} else if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			field.SetUint(u)
		}

	case reflect.Float32, reflect.Float64:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			field.SetFloat(f)
		}

	case reflect.Bool:
		field.SetBool(parseBool(val))

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			field.Set(reflect.ValueOf(SplitTags(val)))
		}
	}
}

// parseBool accepts "true", "1" and "yes", case-insensitively.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
