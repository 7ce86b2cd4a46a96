// Command geoiplookup queries a MaxMind DB file from the command line.
//
//	geoiplookup -db country.mmdb 81.2.69.160 2001:218::1
//	geoiplookup -db country.mmdb -verify
//	geoiplookup -db country.mmdb -dump networks.msgpack
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"

	"github.com/vmihailenco/msgpack"

	"github.com/peerwatch/geoipdb"
	"github.com/peerwatch/geoipdb/internal/config"
)

// networkRecord is one entry of the -dump stream.
type networkRecord struct {
	Network string `msgpack:"network"`
	Country string `msgpack:"country"`
}

var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("geoiplookup failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("geoiplookup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", os.Getenv(config.DBPathEnv), "Path to the MaxMind DB file.")
	verify := fs.Bool("verify", false, "Verify the structure of the database and exit.")
	dump := fs.String("dump", "", "Write every network and its country to this file as a msgpack stream.")
	aliases := fs.Bool("dump.aliases", false, "Include aliased copies of the IPv4 space in -dump.")
	logLevel := fs.String("log.level", "warn", "Log level: debug, info, warn or error.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if *dbPath == "" {
		fmt.Fprintln(stderr, "geoiplookup: -db is required")
		return errUsage
	}
	if !*verify && *dump == "" && fs.NArg() == 0 {
		fmt.Fprintln(stderr, "geoiplookup: nothing to do; pass IP addresses, -verify or -dump")
		return errUsage
	}

	db, err := geoipdb.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Debug("database opened", "path", *dbPath, "type", db.Type(), "build_time", db.BuildEpoch())

	switch {
	case *verify:
		if err := db.Verify(); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintf(stdout, "%s: ok (%s, %d nodes)\n", *dbPath, db.Type(), db.NodeCount())
		return nil
	case *dump != "":
		var opts []geoipdb.NetworksOption
		if !*aliases {
			opts = append(opts, geoipdb.SkipAliasedNetworks)
		}
		n, err := dumpNetworks(db, *dump, opts...)
		if err != nil {
			return err
		}
		slog.Info("dump written", "path", *dump, "networks", n)
		return nil
	default:
		return lookupAll(db, fs.Args(), stdout)
	}
}

// lookupAll prints one tab-separated line per address: the address, its
// country (or "--") and the matching network.
func lookupAll(db *geoipdb.Database, ips []string, stdout io.Writer) error {
	w := bufio.NewWriter(stdout)
	var failed int
	for _, raw := range ips {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			slog.Warn("skipping invalid address", "ip", raw, "error", err)
			failed++
			continue
		}
		res := db.Lookup(addr)
		if err := res.Err(); err != nil {
			return fmt.Errorf("looking up %s: %w", raw, err)
		}
		country := res.Country()
		if country == "" {
			country = "--"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", raw, country, res.Prefix())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d invalid address(es)", failed)
	}
	return nil
}

func dumpNetworks(db *geoipdb.Database, path string, opts ...geoipdb.NetworksOption) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(f)
	enc := msgpack.NewEncoder(w)

	n := 0
	for res := range db.Networks(opts...) {
		if err = res.Err(); err != nil {
			break
		}
		if err = enc.Encode(networkRecord{
			Network: res.Prefix().String(),
			Country: res.Country(),
		}); err != nil {
			break
		}
		n++
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", path, err)
	}
	return n, nil
}
