package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache provider names
const (
	CacheProviderRedis  = "redis"
	CacheProviderValKey = "valkey"
)

// Default verification flow timings. The poll deadline is layered above the
// per-call request timeout, never derived from it.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultPollDeadline   = 60 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

// Configuration holds the project configuration
type Configuration struct {
	ServerUrl  string    `mapstructure:"ServerUrl"`
	ServerPort int       `mapstructure:"ServerPort"`
	NDI        NDI       `mapstructure:"NDI"`
	Pensioner  Pensioner `mapstructure:"Pensioner"`
	Cache      Cache     `mapstructure:"Cache"`
	KeyStore   KeyStore  `mapstructure:"KeyStore"`
	Log        Log       `mapstructure:"Log"`
}

// NDI holds the configuration to talk to the NDI backend and its event gateway.
// EventAuthSeed is a development override only; in any real deployment the
// seed comes from the key store. It must never be committed as a literal.
type NDI struct {
	BaseURL        string        `mapstructure:"BaseUrl" tip:"NDI proof request backend base url"`
	EventServerURL string        `mapstructure:"EventServerUrl" tip:"NDI event gateway websocket url"`
	EventAuthSeed  string        `mapstructure:"EventAuthSeed" tip:"Event gateway auth seed (dev override, prefer the key store)"`
	WebhookID      string        `mapstructure:"WebhookId" tip:"Webhook channel identifier to subscribe threads to"`
	WebhookURL     string        `mapstructure:"WebhookUrl" tip:"Delivery url registered in the webhook details"`
	ReturnURL      string        `mapstructure:"ReturnUrl" tip:"App scheme the wallet calls back to wake us up"`
	PollInterval   time.Duration `mapstructure:"PollInterval" tip:"Webhook details poll interval"`
	PollDeadline   time.Duration `mapstructure:"PollDeadline" tip:"Overall poll deadline per attempt"`
	RequestTimeout time.Duration `mapstructure:"RequestTimeout" tip:"Timeout for each outbound NDI call"`
}

// Pensioner holds the downstream pensioner account service configuration
type Pensioner struct {
	BaseURL        string        `mapstructure:"BaseUrl" tip:"Pensioner account api base url"`
	RequestTimeout time.Duration `mapstructure:"RequestTimeout" tip:"Timeout for each pensioner api call"`
}

// Cache configuration
type Cache struct {
	Provider string `mapstructure:"Provider" tip:"Cache provider: redis or valkey"`
	Url      string `mapstructure:"Url" tip:"Cache connection url"`
}

// KeyStore defines the vault where the event gateway auth seed lives
type KeyStore struct {
	Address      string `mapstructure:"Address" tip:"Vault address"`
	Token        string `mapstructure:"Token" tip:"Vault access token"`
	EventSeedKey string `mapstructure:"EventSeedKey" tip:"Vault KV path holding the event gateway seed"`
}

// Log holds runtime log configuration
//
// Level: The minimum log level to show on logs. Values can be
//
//	 -4: Debug
//		0: Info
//		4: Warning
//		8: Error
//
// Mode: Log mode is the format of the log. 1: JSON, 2: Text
type Log struct {
	Level int `mapstructure:"Level" tip:"Minimum level to log: (-4:Debug, 0:Info, 4:Warning, 8:Error)"`
	Mode  int `mapstructure:"Mode" tip:"Log format (1: JSON, 2:Structured text)"`
}

// Sanitize perform some basic checks and sanitizations in the configuration.
// Returns nil if config is acceptable, error otherwise.
func (c *Configuration) Sanitize() error {
	sUrl, err := c.validateServerUrl()
	if err != nil {
		return fmt.Errorf("serverUrl is not a valid URL <%s>: %w", c.ServerUrl, err)
	}
	c.ServerUrl = sUrl

	if c.NDI.BaseURL == "" {
		return fmt.Errorf("an NDI backend base url must be provided")
	}
	if c.NDI.ReturnURL == "" {
		return fmt.Errorf("a wallet return url must be provided")
	}
	if c.NDI.EventAuthSeed == "" && c.KeyStore.Address == "" {
		return fmt.Errorf("the event gateway seed must come from the key store or from NDI.EventAuthSeed")
	}

	if c.NDI.PollInterval == 0 {
		c.NDI.PollInterval = DefaultPollInterval
	}
	if c.NDI.PollDeadline == 0 {
		c.NDI.PollDeadline = DefaultPollDeadline
	}
	if c.NDI.RequestTimeout == 0 {
		c.NDI.RequestTimeout = DefaultRequestTimeout
	}
	if c.Pensioner.RequestTimeout == 0 {
		c.Pensioner.RequestTimeout = DefaultRequestTimeout
	}

	return nil
}

func (c *Configuration) validateServerUrl() (string, error) {
	sUrl, err := url.ParseRequestURI(c.ServerUrl)
	if err != nil {
		return c.ServerUrl, err
	}
	if sUrl.Scheme == "" {
		return c.ServerUrl, fmt.Errorf("server URL must be an absolute URL")
	}
	sUrl.RawQuery = ""
	return strings.Trim(strings.Trim(sUrl.String(), "/"), "?"), nil
}

// Load loads the configuration from a file
func Load(fileName string) (*Configuration, error) {
	bindEnv()
	pathFlag := viper.GetString("config")
	if _, err := os.Stat(pathFlag); err == nil {
		ext := filepath.Ext(pathFlag)
		if len(ext) > 1 {
			ext = ext[1:]
		}
		name := strings.Split(filepath.Base(pathFlag), ".")[0]
		viper.AddConfigPath(".")
		viper.SetConfigName(name)
		viper.SetConfigType(ext)
	} else {
		viper.AddConfigPath(getWorkingDirectory())
		viper.SetConfigType("toml")
		if fileName == "" {
			viper.SetConfigName("config")
		} else {
			viper.SetConfigName(fileName)
		}
	}

	config := &Configuration{
		Log: Log{
			Level: LevelDefault,
			Mode:  ModeDefault,
		},
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Log defaults
const (
	LevelDefault = 0 // info
	ModeDefault  = 1 // json
)

func bindEnv() {
	viper.SetEnvPrefix("NDIVERIFIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.BindEnv("ServerUrl", "NDIVERIFIER_SERVER_URL")
	_ = viper.BindEnv("ServerPort", "NDIVERIFIER_SERVER_PORT")

	_ = viper.BindEnv("NDI.BaseUrl", "NDIVERIFIER_NDI_BASE_URL")
	_ = viper.BindEnv("NDI.EventServerUrl", "NDIVERIFIER_NDI_EVENT_SERVER_URL")
	_ = viper.BindEnv("NDI.EventAuthSeed", "NDIVERIFIER_NDI_EVENT_AUTH_SEED")
	_ = viper.BindEnv("NDI.WebhookId", "NDIVERIFIER_NDI_WEBHOOK_ID")
	_ = viper.BindEnv("NDI.WebhookUrl", "NDIVERIFIER_NDI_WEBHOOK_URL")
	_ = viper.BindEnv("NDI.ReturnUrl", "NDIVERIFIER_NDI_RETURN_URL")
	_ = viper.BindEnv("NDI.PollInterval", "NDIVERIFIER_NDI_POLL_INTERVAL")
	_ = viper.BindEnv("NDI.PollDeadline", "NDIVERIFIER_NDI_POLL_DEADLINE")
	_ = viper.BindEnv("NDI.RequestTimeout", "NDIVERIFIER_NDI_REQUEST_TIMEOUT")

	_ = viper.BindEnv("Pensioner.BaseUrl", "NDIVERIFIER_PENSIONER_BASE_URL")
	_ = viper.BindEnv("Pensioner.RequestTimeout", "NDIVERIFIER_PENSIONER_REQUEST_TIMEOUT")

	_ = viper.BindEnv("Cache.Provider", "NDIVERIFIER_CACHE_PROVIDER")
	_ = viper.BindEnv("Cache.Url", "NDIVERIFIER_CACHE_URL")

	_ = viper.BindEnv("KeyStore.Address", "NDIVERIFIER_KEY_STORE_ADDRESS")
	_ = viper.BindEnv("KeyStore.Token", "NDIVERIFIER_KEY_STORE_TOKEN")
	_ = viper.BindEnv("KeyStore.EventSeedKey", "NDIVERIFIER_KEY_STORE_EVENT_SEED_KEY")

	_ = viper.BindEnv("Log.Level", "NDIVERIFIER_LOG_LEVEL")
	_ = viper.BindEnv("Log.Mode", "NDIVERIFIER_LOG_MODE")

	viper.AutomaticEnv()
}

func getWorkingDirectory() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
