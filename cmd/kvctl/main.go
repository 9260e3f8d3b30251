package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/nicolagi/pathkv/client"
	"github.com/nicolagi/pathkv/storage"
	log "github.com/sirupsen/logrus"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1337", "address of the kvserver")
	debug := flag.Bool("debug", false, "log request details")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] get KEY | put KEY [VALUE]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	status, err := run(client.New(*addr), flag.Args(), os.Stdin, os.Stdout)
	if err != nil {
		log.WithField("addr", *addr).Error(err)
	}
	if status == 2 {
		flag.Usage()
	}
	os.Exit(status)
}

// run returns the exit status: 0 on success, 1 on failure, 2 on bad usage.
func run(c *client.Client, args []string, stdin io.Reader, stdout io.Writer) (int, error) {
	if len(args) < 2 {
		return 2, nil
	}
	logger := log.WithFields(log.Fields{
		"op":  args[0],
		"key": args[1],
	})
	switch args[0] {
	case "get":
		if len(args) != 2 {
			return 2, nil
		}
		value, err := c.Get(args[1])
		if errors.Is(err, storage.ErrNotFound) {
			logger.Debug("Not found")
			return 1, nil
		}
		if err != nil {
			return 1, err
		}
		logger.Debug("Success")
		_, err = stdout.Write(value)
		return exitStatus(err)
	case "put":
		var value []byte
		switch len(args) {
		case 2:
			var err error
			if value, err = ioutil.ReadAll(stdin); err != nil {
				return 1, fmt.Errorf("could not read value: %w", err)
			}
		case 3:
			value = []byte(args[2])
		default:
			return 2, nil
		}
		previous, replaced, err := c.Put(args[1], value)
		if err != nil {
			return 1, err
		}
		logger.WithField("replaced", replaced).Debug("Success")
		_, err = stdout.Write(previous)
		return exitStatus(err)
	default:
		return 2, nil
	}
}

func exitStatus(err error) (int, error) {
	if err != nil {
		return 1, err
	}
	return 0, nil
}
