package configuration

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zvonler/wallspider/graph"
	"github.com/zvonler/wallspider/logging"
	"github.com/zvonler/wallspider/utils"
)

const (
	AppName    = "wallspider"
	EnvPrefix  = "WALLSPIDER"
	ConfigName = "wallspider"

	DefaultWebURL      = "https://www.facebook.com"
	DefaultListen      = "127.0.0.1:8080"
	DefaultLocation    = "UTC"
	DefaultRetryPeriod = 500 * time.Millisecond
)

// Config is the resolved set of settings shared by every command.
type Config struct {
	APIToken       string
	BaseURL        string
	WebURL         string
	UserAgent      string
	MaxPages       int
	CrawlTimeout   time.Duration
	RequestTimeout time.Duration
	PageDelay      time.Duration
	MaxRetries     int
	MaxBodySize    int
	Concurrency    int
	Location       *time.Location
	Verbose        bool
	Listen         string
	ConfigFile     string
}

// SetDefaults registers every key so env lookups and flag bindings resolve
// against a known name.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_token", "")
	v.SetDefault("base_url", graph.DefaultBaseURL)
	v.SetDefault("web_url", DefaultWebURL)
	v.SetDefault("user_agent", graph.DefaultUserAgent)
	v.SetDefault("max_pages", graph.DefaultMaxPages)
	v.SetDefault("crawl_timeout", time.Duration(0))
	v.SetDefault("request_timeout", graph.DefaultRequestTimeout)
	v.SetDefault("page_delay", time.Duration(0))
	v.SetDefault("max_retries", 0)
	v.SetDefault("max_body_size", graph.DefaultMaxBodySize)
	v.SetDefault("concurrency", graph.DefaultConcurrency)
	v.SetDefault("location", DefaultLocation)
	v.SetDefault("verbose", false)
	v.SetDefault("listen", DefaultListen)
}

// ConfigDir is the per-user directory searched for wallspider.yaml.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Load reads .env, the config file and the environment into v and returns
// the result. An explicit "config" key names the file to read; otherwise a
// missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	locName := v.GetString("location")
	loc, err := time.LoadLocation(locName)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", locName, err)
	}

	return &Config{
		APIToken:       v.GetString("api_token"),
		BaseURL:        v.GetString("base_url"),
		WebURL:         v.GetString("web_url"),
		UserAgent:      v.GetString("user_agent"),
		MaxPages:       v.GetInt("max_pages"),
		CrawlTimeout:   v.GetDuration("crawl_timeout"),
		RequestTimeout: v.GetDuration("request_timeout"),
		PageDelay:      v.GetDuration("page_delay"),
		MaxRetries:     v.GetInt("max_retries"),
		MaxBodySize:    v.GetInt("max_body_size"),
		Concurrency:    v.GetInt("concurrency"),
		Location:       loc,
		Verbose:        v.GetBool("verbose"),
		Listen:         v.GetString("listen"),
		ConfigFile:     v.ConfigFileUsed(),
	}, nil
}

// Current loads the configuration bound to the global viper instance, which
// the root command's persistent flags feed.
func Current() (*Config, error) {
	return Load(viper.GetViper())
}

// NewLogger returns the redacting logger for this configuration.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return logging.New(w, c.Verbose)
}

// Validate reports the first setting that cannot produce a working crawler.
func (c *Config) Validate() error {
	switch {
	case c.APIToken == "":
		return errors.New("api_token is not set (use --api-token or WALLSPIDER_API_TOKEN)")
	case c.MaxPages < 1:
		return fmt.Errorf("max_pages must be positive, got %d", c.MaxPages)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	case c.MaxBodySize < 1:
		return fmt.Errorf("max_body_size must be positive, got %d", c.MaxBodySize)
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	case c.CrawlTimeout < 0 || c.RequestTimeout < 0 || c.PageDelay < 0:
		return errors.New("durations must not be negative")
	case c.Location == nil:
		return errors.New("location is not set")
	}
	if _, err := utils.TrimmedURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if _, err := utils.TrimmedURL(c.WebURL); err != nil {
		return fmt.Errorf("web_url: %w", err)
	}
	return nil
}

// NewCrawler builds the transport, paginator and crawler described by c.
func (c *Config) NewCrawler(logger *slog.Logger) (*graph.Crawler, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	transport, err := graph.NewTransport(c.BaseURL,
		graph.WithUserAgent(c.UserAgent),
		graph.WithMaxBodySize(c.MaxBodySize),
		graph.WithRequestTimeout(c.RequestTimeout))
	if err != nil {
		return nil, err
	}

	paginator := graph.NewPaginator(transport,
		graph.WithMaxPages(c.MaxPages),
		graph.WithPageDelay(c.PageDelay),
		graph.WithRetries(c.MaxRetries, DefaultRetryPeriod),
		graph.WithPaginatorLogger(logger))

	return graph.NewCrawler(paginator, c.APIToken,
		graph.WithCrawlTimeout(c.CrawlTimeout),
		graph.WithLocation(c.Location),
		graph.WithLogger(logger)), nil
}

// NodeURL is where a node can be viewed in a browser.
func (c *Config) NodeURL(nodeID string) (string, error) {
	u, err := utils.TrimmedURL(c.WebURL)
	if err != nil {
		return "", err
	}
	return u.JoinPath(nodeID).String(), nil
}
