// Package config loads the daemon configuration: defaults, an optional TOML
// file, TOKENCORE_* environment variables, then command-line flags.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/vadiminshakov/tokencore/core/apdu"
	"github.com/vadiminshakov/tokencore/core/content"
)

const (
	ChannelGRPC   = "grpc"
	ChannelMemory = "memory"

	ModeTUI      = "tui"
	ModeHeadless = "headless"
)

type Config struct {
	Node      NodeConfig
	Transport TransportConfig
	Device    DeviceConfig
	Store     StoreConfig
	UI        UIConfig
	Log       LogConfig
}

// NodeConfig is the gRPC listener.
type NodeConfig struct {
	Addr      string
	Whitelist []string
}

type TransportConfig struct {
	Channel string
	MTU     int
}

type DeviceConfig struct {
	Target    string
	AppName   string `mapstructure:"app_name"`
	Version   string
	Developer string
	// Seed is the hex device secret. Empty means a fresh random secret.
	Seed string
}

// StoreConfig locates the settings store. An empty DBPath disables it.
type StoreConfig struct {
	DBPath  string `mapstructure:"dbpath"`
	WALPath string `mapstructure:"walpath"`
}

type UIConfig struct {
	Mode string
	Tick time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.addr", "localhost:9999")
	v.SetDefault("node.whitelist", []string{"127.0.0.1", "::1"})
	v.SetDefault("transport.channel", ChannelGRPC)
	v.SetDefault("transport.mtu", apdu.MaxFrameSize)
	v.SetDefault("device.target", string(content.TargetNanoS))
	v.SetDefault("device.app_name", "Tokencore")
	v.SetDefault("device.version", "0.1.0")
	v.SetDefault("device.developer", "Tokencore developers")
	v.SetDefault("device.seed", "")
	v.SetDefault("store.dbpath", "./data/badger")
	v.SetDefault("store.walpath", "./data/wal")
	v.SetDefault("ui.mode", ModeHeadless)
	v.SetDefault("ui.tick", "100ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads configuration from file and env. Env var overrides use prefix
// TOKENCORE_. path may be empty, then TOKENCORE_CONFIG or ./tokencore.toml is
// used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv("TOKENCORE_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tokencore")
	}

	v.SetEnvPrefix("TOKENCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &c, c.Validate()
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	switch c.Transport.Channel {
	case ChannelGRPC, ChannelMemory:
	default:
		return errors.Errorf("unknown transport channel %q", c.Transport.Channel)
	}
	if c.Transport.MTU < apdu.MinLength+2 || c.Transport.MTU > apdu.MaxFrameSize {
		return errors.Errorf("transport.mtu must be in [%d, %d], got %d",
			apdu.MinLength+2, apdu.MaxFrameSize, c.Transport.MTU)
	}
	if _, err := content.Target(c.Device.Target).PageSize(); err != nil {
		return err
	}
	switch c.UI.Mode {
	case ModeTUI, ModeHeadless:
	default:
		return errors.Errorf("unknown ui mode %q", c.UI.Mode)
	}
	if c.Store.DBPath != "" && c.Store.WALPath == "" {
		return errors.New("store.walpath is required with store.dbpath")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// Parse loads the configuration and applies command-line overrides from args.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tokencore", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to a TOML config file")
	nodeaddr := fs.String("nodeaddr", "", "gRPC listen address")
	whitelist := fs.String("whitelist", "", "allowed hosts, comma separated")
	channel := fs.String("channel", "", "transport channel (grpc or memory)")
	target := fs.String("target", "", "device model (nanos or nanox)")
	dbpath := fs.String("dbpath", "", "settings database path on filesystem")
	walpath := fs.String("walpath", "", "write-ahead log directory")
	ui := fs.String("ui", "", "display mode (tui or headless)")
	loglevel := fs.String("loglevel", "", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c, err := Load(*cfgPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nodeaddr":
			c.Node.Addr = *nodeaddr
		case "whitelist":
			c.Node.Whitelist = strings.Split(*whitelist, ",")
		case "channel":
			c.Transport.Channel = *channel
		case "target":
			c.Device.Target = *target
		case "dbpath":
			c.Store.DBPath = *dbpath
		case "walpath":
			c.Store.WALPath = *walpath
		case "ui":
			c.UI.Mode = *ui
		case "loglevel":
			c.Log.Level = *loglevel
		}
	})

	return c, c.Validate()
}

// Get creates configuration from the config file, env and command-line
// arguments. It exits on invalid configuration.
func Get() *Config {
	c, err := Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return c
}
