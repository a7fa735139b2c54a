// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"crypto/tls"
	"io/fs"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"event-scheduler/changefeed"
)

const (
	BackendMongo    = "mongo"
	BackendAzTables = "aztables"
)

const (
	KeyMongoURI             = "MONGODB_URI"
	KeyMongoDatabase        = "MONGODB_DATABASE"
	KeyMongoCollection      = "MONGODB_COLLECTION"
	KeyBackend              = "STORE_BACKEND"
	KeyStorageConnection    = "STORAGE_CONNECTION_STRING"
	KeyEventsTable          = "EVENTS_TABLE"
	KeyChangesQueue         = "CHANGES_QUEUE"
	KeyRedisConnection      = "REDIS_CONNECTION_STRING"
	KeyCacheTTL             = "CACHE_TTL"
	KeyPort                 = "PORT"
	KeyDebug                = "DEBUG"
	KeyNotifyWorkers        = "NOTIFY_WORKERS"
	KeyNotifyBuffer         = "NOTIFY_BUFFER"
	KeyNotifyTimeout        = "NOTIFY_TIMEOUT"
	KeyNotifyHandoffTimeout = "NOTIFY_HANDOFF_TIMEOUT"
)

// Config holds everything the server and storage init need.
type Config struct {
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	Backend                 string
	StorageConnectionString string
	EventsTable             string
	ChangesQueue            string

	RedisConnectionString string
	CacheTTL              time.Duration

	Port  int
	Debug bool

	Notify changefeed.Config
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	notify := changefeed.DefaultConfig
	v.SetDefault(KeyMongoDatabase, "eventScheduler")
	v.SetDefault(KeyMongoCollection, "events")
	v.SetDefault(KeyBackend, BackendMongo)
	v.SetDefault(KeyEventsTable, "events")
	v.SetDefault(KeyCacheTTL, 5*time.Minute)
	v.SetDefault(KeyPort, 4000)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyNotifyWorkers, notify.Workers)
	v.SetDefault(KeyNotifyBuffer, notify.Buffer)
	v.SetDefault(KeyNotifyTimeout, notify.Timeout)
	v.SetDefault(KeyNotifyHandoffTimeout, notify.HandoffTimeout)
}

// Load reads envFile if it exists, then lets the process environment
// override it. An empty envFile skips the file.
func Load(v *viper.Viper, envFile string) (Config, error) {
	SetDefaults(v)
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, errors.Wrapf(err, "read %s", envFile)
			}
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		MongoURI:                v.GetString(KeyMongoURI),
		MongoDatabase:           v.GetString(KeyMongoDatabase),
		MongoCollection:         v.GetString(KeyMongoCollection),
		Backend:                 strings.ToLower(v.GetString(KeyBackend)),
		StorageConnectionString: v.GetString(KeyStorageConnection),
		EventsTable:             v.GetString(KeyEventsTable),
		ChangesQueue:            v.GetString(KeyChangesQueue),
		RedisConnectionString:   v.GetString(KeyRedisConnection),
		CacheTTL:                v.GetDuration(KeyCacheTTL),
		Port:                    v.GetInt(KeyPort),
		Debug:                   v.GetBool(KeyDebug),
		Notify: changefeed.Config{
			Workers:        v.GetInt(KeyNotifyWorkers),
			Buffer:         v.GetInt(KeyNotifyBuffer),
			Timeout:        v.GetDuration(KeyNotifyTimeout),
			HandoffTimeout: v.GetDuration(KeyNotifyHandoffTimeout),
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports the first missing or malformed setting.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.Errorf("missing %s", KeyMongoURI)
		}
	case BackendAzTables:
		if c.StorageConnectionString == "" {
			return errors.Errorf("missing %s", KeyStorageConnection)
		}
	default:
		return errors.Errorf("invalid %s %q: must be %s or %s", KeyBackend, c.Backend, BackendMongo, BackendAzTables)
	}
	if c.ChangesQueue != "" && c.StorageConnectionString == "" {
		return errors.Errorf("%s requires %s", KeyChangesQueue, KeyStorageConnection)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid %s: %d", KeyPort, c.Port)
	}
	if c.CacheTTL < 0 {
		return errors.Errorf("invalid %s: must not be negative", KeyCacheTTL)
	}
	if c.Notify.Workers <= 0 {
		return errors.Errorf("invalid %s: must be greater than zero", KeyNotifyWorkers)
	}
	if c.Notify.Buffer < 0 {
		return errors.Errorf("invalid %s: must not be negative", KeyNotifyBuffer)
	}
	return nil
}

// RedisOptions accepts either a redis:// URL or the Azure style
// "host:port,password=...,ssl=True" connection string.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts, nil
}
