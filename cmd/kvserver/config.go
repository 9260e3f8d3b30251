package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rogpeppe/rjson"
)

type config struct {
	Address      string `json:"address"`
	Debug        bool   `json:"debug"`
	LogPath      string `json:"log_path"`
	ReadTimeout  string `json:"read_timeout"`
	MaxValueSize int64  `json:"max_value_size"`

	Backend struct {
		Type string `json:"type"`

		// Keep a copy of every value read or written in memory, in front of
		// the configured backend.
		Cache bool `json:"cache"`

		// Properties for "bolt" and "disk" types.
		Path string `json:"path"`

		// Properties for "dynamodb" and "s3" types.
		Profile string `json:"profile"`
		Region  string `json:"region"`
		Table   string `json:"table"`
		Bucket  string `json:"bucket"`
	} `json:"backend"`

	readTimeout time.Duration
}

// loadConfig returns the zero config, to be filled in with defaults, if there
// is no file at pathname.
func loadConfig(pathname string) (*config, error) {
	c := new(config)
	f, err := os.Open(pathname)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := rjson.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *config) applyDefaultsForMissingProperties() {
	if c.Address == "" {
		c.Address = "127.0.0.1:1337"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "0s"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "memory"
	}
	if c.Backend.Path == "" {
		switch c.Backend.Type {
		case "bolt":
			c.Backend.Path = "$HOME/lib/pathkv/values.db"
		case "disk":
			c.Backend.Path = "$HOME/lib/pathkv/data"
		}
	}
}

func (c *config) validate() error {
	d, err := time.ParseDuration(c.ReadTimeout)
	if err != nil {
		return fmt.Errorf("read_timeout: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("read_timeout: %v is negative", d)
	}
	c.readTimeout = d
	if c.MaxValueSize < 0 {
		return fmt.Errorf("max_value_size: %d is negative", c.MaxValueSize)
	}
	switch c.Backend.Type {
	case "memory", "bolt", "disk":
	case "dynamodb":
		if c.Backend.Region == "" || c.Backend.Table == "" {
			return fmt.Errorf("backend: dynamodb needs region and table")
		}
	case "s3":
		if c.Backend.Region == "" || c.Backend.Bucket == "" {
			return fmt.Errorf("backend: s3 needs region and bucket")
		}
	default:
		return fmt.Errorf("backend: unknown type %q", c.Backend.Type)
	}
	return nil
}
