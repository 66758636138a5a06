package main

import (
	"flag"
	"math/rand"
	"time"

	"github.com/flippback/prebid-flipp/config"
	"github.com/flippback/prebid-flipp/router"
	"github.com/flippback/prebid-flipp/server"
	"github.com/golang/glog"
	"github.com/spf13/viper"
)

// Rev holds binary revision string
// Set manually at build time using:
//
//	go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

// Version holds the release tag, set the same way as Rev.
var Version string

func init() {
	rand.Seed(time.Now().UnixNano())
}

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	err = serve(Rev, Version, cfg)
	if err != nil {
		glog.Exitf("flipp bidder failed: %v", err)
	}
}

const configFileName = "flipp"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(revision, version string, cfg *config.Configuration) error {
	r, err := router.New(cfg)
	if err != nil {
		return err
	}

	corsRouter := router.SupportCORS(r)
	err = server.Listen(cfg, router.NoCache{Handler: corsRouter}, router.Admin(revision, version), r.MetricsEngine)
	r.Shutdown()
	return err
}
