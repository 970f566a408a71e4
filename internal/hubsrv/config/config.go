package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type ConfigParam struct {
	ServerPort string `toml:"server_port"`
	HandleCORS bool   `toml:"handle_cors"`
	// DatabaseDSN empty selects the in-memory store (development mode).
	DatabaseDSN string `toml:"database_dsn"`
	// QueueTickSeconds is the dispatch queue scan interval.
	QueueTickSeconds int `toml:"queue_tick_seconds"`
}

var cfg *ConfigParam

func Config() *ConfigParam {
	return cfg
}

func (c *ConfigParam) QueueTickInterval() time.Duration {
	if c.QueueTickSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.QueueTickSeconds) * time.Second
}

func LoadConfig(filename string) error {
	if filename == "" {
		cfg = &ConfigParam{
			ServerPort:       "8420",
			HandleCORS:       true,
			QueueTickSeconds: 5,
		}
		return nil
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	var cp ConfigParam
	if _, err := toml.Decode(string(content), &cp); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	if cp.ServerPort == "" {
		cp.ServerPort = "8420"
	}
	if cp.QueueTickSeconds <= 0 {
		cp.QueueTickSeconds = 5
	}
	cfg = &cp
	return nil
}

func init() {
	if err := LoadConfig(""); err != nil {
		panic(err)
	}
}
