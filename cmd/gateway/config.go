package main

import (
	"encoding/json"
	"os"

	"github.com/omeid/uconfig"
)

// configFilename is the filename of the config file automatically loaded.
var configFilename = "config.json"

type chainConfig struct {
	Endpoint  string `default:""`
	ChainID   int64  `default:"0"`
	Free      bool   `default:"false"`
	Trace     bool   `default:"false"`
	Contracts struct {
		NectarToken    string `default:""`
		BountyRegistry string `default:""`
		ArbiterStaking string `default:""`
		ERC20Relay     string `default:""`
		OfferRegistry  string `default:""`
	}
}

type config struct {
	HTTP struct {
		Port string `default:"31337"`
	}
	Metrics struct {
		Port string `default:"9090"`
	}
	Log struct {
		Level  string `default:"info" env:"LOG_LEVEL"`
		Format string `default:"json" env:"LOG_FORMAT"`
	}
	Community string `default:"" env:"POLYSWARMD_COMMUNITY"`
	Auth      struct {
		URI      string `default:"" env:"POLYSWARMD_AUTH_URI"`
		Required bool   `default:"false" env:"POLYSWARMD_REQUIRE_API_KEY"`
	}
	Artifact struct {
		URI     string `default:"" env:"POLYSWARMD_ARTIFACT_URI"`
		MaxSize int64  `default:"33554432" env:"MAX_ARTIFACT_SIZE"`
	}
	RateLimit struct {
		MaxRPI   uint64 `default:"500"`
		Interval string `default:"1s"`
	}
	Home chainConfig
	Side chainConfig
}

func setupConfig() *config {
	conf := &config{}
	confFiles := uconfig.Files{
		{configFilename, json.Unmarshal},
	}

	c, err := uconfig.Classic(&conf, confFiles)
	if err != nil {
		c.Usage()
		os.Exit(1)
	}

	return conf
}
