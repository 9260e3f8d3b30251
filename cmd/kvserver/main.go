package main

import (
	"context"
	"flag"
	"fmt"
	golog "log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/gops/agent"
	"github.com/nicolagi/pathkv/server"
	"github.com/nicolagi/pathkv/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func main() {
	defaultConfigFile := os.ExpandEnv("$HOME/lib/pathkv/kvserver.config")
	configFile := flag.String("config", defaultConfigFile, "location of configuration file")
	flag.Parse()

	config, err := loadConfig(*configFile)
	if err != nil {
		log.WithFields(log.Fields{
			"err":  err,
			"path": *configFile,
		}).Fatal("Could not load configuration")
	}
	config.applyDefaultsForMissingProperties()
	if err := config.validate(); err != nil {
		log.WithFields(log.Fields{
			"err":  err,
			"path": *configFile,
		}).Fatal("Invalid configuration")
	}

	if config.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cleanup := redirectLogging(config)
	defer cleanup()

	// No ShutdownCleanup: the agent's own interrupt handler would exit before
	// the server has drained.
	if err := agent.Listen(agent.Options{}); err != nil {
		log.WithField("err", err).Warn("Could not start gops agent")
	} else {
		defer agent.Close()
	}

	store, closeStore, err := openStore(config)
	if err != nil {
		log.WithFields(log.Fields{
			"err":     err,
			"backend": config.Backend.Type,
		}).Fatal("Could not open store")
	}
	defer closeStore()
	if config.Backend.Cache && config.Backend.Type != "memory" {
		store = storage.NewPaired(storage.NewInMemoryStore(), store)
		log.Info("Values will be cached in memory")
	}

	srv := server.New(
		server.WithAddress(config.Address),
		server.WithStore(store),
		server.WithReadTimeout(config.readTimeout),
		server.WithMaxValueSize(config.MaxValueSize),
	)
	addr, err := srv.Listen()
	if err != nil {
		log.WithField("err", err).Fatal("Could not listen")
	}
	log.WithFields(log.Fields{
		"addr":    addr,
		"backend": config.Backend.Type,
	}).Info("Listening")

	// Before we call srv.Serve(), which never returns unless srv.Shutdown() is
	// called, we need to install a signal handler to call srv.Shutdown().
	c := make(chan os.Signal, 1)
	signal.Notify(c, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-c
		log.WithField("signal", sig).Info("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Will make srv.Serve() return once in-flight requests are done, and
		// allow deferred clean-up functions to execute.
		if err := srv.Shutdown(ctx); err != nil {
			log.WithField("err", err).Warn("Could not shut down the server cleanly")
		}
	}()

	if err := srv.Serve(); err != nil {
		log.Error(err)
	}
}

// openStore returns the configured backend and a function to release it.
func openStore(c *config) (store storage.Store, closer func(), err error) {
	nothing := func() {}
	switch c.Backend.Type {
	case "memory":
		log.Info("Values will be kept in memory and lost on exit")
		return storage.NewInMemoryStore(), nothing, nil
	case "bolt":
		file := os.ExpandEnv(c.Backend.Path)
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return nil, nil, fmt.Errorf("could not ensure directory for %q exists: %w", file, err)
		}
		db, err := bolt.Open(file, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("could not open database %q: %w", file, err)
		}
		closer := func() {
			if err := db.Close(); err != nil {
				log.WithField("err", err).Warn("Could not close boltdb database")
			}
		}
		store, err := storage.NewBoltStore(db)
		if err != nil {
			closer()
			return nil, nil, fmt.Errorf("could not instantiate boltdb store at %q: %w", file, err)
		}
		log.Infof("Will use a boltdb backend storing data at %s", file)
		return store, closer, nil
	case "disk":
		dir := os.ExpandEnv(c.Backend.Path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, nil, fmt.Errorf("could not ensure directory %q exists: %w", dir, err)
		}
		log.Infof("Will use a disk-based backend storing data at %s", dir)
		return storage.NewDiskStore(dir), nothing, nil
	case "s3":
		store, err := storage.NewS3Store(c.Backend.Profile, c.Backend.Region, c.Backend.Bucket)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Will use S3 bucket %s in %s", c.Backend.Bucket, c.Backend.Region)
		return store, nothing, nil
	case "dynamodb":
		store, err := storage.NewDynamoDBStore(c.Backend.Profile, c.Backend.Region, c.Backend.Table)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("Will use DynamoDB table %s in %s", c.Backend.Table, c.Backend.Region)
		return store, nothing, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend type %q", c.Backend.Type)
	}
}

func redirectLogging(c *config) (cleanup func()) {
	golog.SetOutput(log.StandardLogger().Writer())
	if c.LogPath == "" {
		return func() {}
	}
	pathname := os.ExpandEnv(c.LogPath)
	logger := log.WithField("pathname", pathname)
	f, err := os.OpenFile(pathname, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		logger.WithField("err", err).Fatal("Could not open log file")
	}
	logger.Info("Lines after this one will be logged to a file")
	log.SetOutput(f)
	return func() {
		if err := f.Close(); err != nil {
			// Can't use the logger here!
			_, _ = fmt.Fprintf(os.Stderr, "Could not close log file cleanly %q: %v", pathname, err)
		}
	}
}
