package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	raven "github.com/getsentry/raven-go"
	"github.com/spf13/pflag"

	"github.com/ndlib/webpub/server"
	"github.com/ndlib/webpub/site"
)

// config is the layout of the TOML configuration file. Command line flags
// override the values read from the file.
type config struct {
	Port       string
	PProfPort  string
	StorageDir string
	TokenFile  string
	MaxWriters int
	SentryDSN  string
	Hosts      map[string]string // host name -> site name
}

func main() {
	var (
		configFile string
		flags      config
	)
	flagSet := pflag.NewFlagSet("webpub", pflag.ContinueOnError)
	flagSet.StringVar(&configFile, "config", "", "TOML configuration file")
	flagSet.StringVar(&flags.Port, "port", "", "port to listen on (default 14000)")
	flagSet.StringVar(&flags.PProfPort, "pprof", "", "port for the pprof server")
	flagSet.StringVarP(&flags.StorageDir, "storage", "s", "", "directory holding the sites (default .)")
	flagSet.StringVar(&flags.TokenFile, "tokens", "", "file of API tokens; without one every request is an admin")
	flagSet.IntVar(&flags.MaxWriters, "max-writers", 0, "number of simultaneous writes allowed")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var cfg config
	if configFile != "" {
		log.Println("Reading config file", configFile)
		if _, err := toml.DecodeFile(configFile, &cfg); err != nil {
			log.Fatalln(err)
		}
	}
	cfg.merge(flags)
	if cfg.StorageDir == "" {
		cfg.StorageDir = "."
	}
	if cfg.SentryDSN != "" {
		raven.SetDSN(cfg.SentryDSN)
	}

	s := &server.RESTServer{
		PortNumber: cfg.Port,
		PProfPort:  cfg.PProfPort,
		Sites:      site.NewRegistry(cfg.StorageDir),
		Hosts:      cfg.Hosts,
		MaxWriters: cfg.MaxWriters,
	}
	if cfg.TokenFile != "" {
		log.Println("Using token file", cfg.TokenFile)
		v, err := server.NewListDecoderFile(cfg.TokenFile)
		if err != nil {
			log.Fatalln(err)
		}
		s.Validator = v
	}

	go signalHandler(s)
	if err := s.Run(); err != nil {
		log.Fatalln(err)
	}
}

// merge copies every flag which was given over the value in c.
func (c *config) merge(flags config) {
	if flags.Port != "" {
		c.Port = flags.Port
	}
	if flags.PProfPort != "" {
		c.PProfPort = flags.PProfPort
	}
	if flags.StorageDir != "" {
		c.StorageDir = flags.StorageDir
	}
	if flags.TokenFile != "" {
		c.TokenFile = flags.TokenFile
	}
	if flags.MaxWriters != 0 {
		c.MaxWriters = flags.MaxWriters
	}
}

// signalHandler stops the server on SIGINT or SIGTERM. Run then returns.
func signalHandler(s *server.RESTServer) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("Received signal, stopping")
	if err := s.Stop(); err != nil {
		log.Println(err)
	}
}
