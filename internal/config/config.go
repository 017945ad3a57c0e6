// Package config holds the server's static configuration, built from
// command-line flags, and the small key/value surface CONFIG GET
// exposes to clients.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"rkv/internal/store"
)

// Config is the process-wide, read-many/mutate-rarely configuration
// shared by the router, replicator, and background tasks.
type Config struct {
	Host string
	Port int

	RDBDir       string
	RDBFile      string
	RDBEmptyFile string

	Expiration store.ExpirationConfig

	ReplicaOf string // "host:port", empty if this process is a master
}

// Default returns the source's defaults: host 127.0.0.1, port 6378,
// dump.rdb in the working directory, active expiration disabled.
func Default() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         6378,
		RDBDir:       ".",
		RDBFile:      "dump.rdb",
		RDBEmptyFile: "empty.rdb",
		Expiration:   store.DefaultExpirationConfig(),
	}
}

// ParseFlags builds a Config from the process's command-line
// arguments, using `--flag value` pairs. `--replicaof` takes a single
// quoted "host port" value and is rewritten to "host:port" here so the
// rest of the system only ever deals with one address form.
func ParseFlags(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("rkv", flag.ContinueOnError)
	host := fs.String("host", cfg.Host, "address to bind to")
	port := fs.Int("port", cfg.Port, "port to listen on")
	replicaof := fs.String("replicaof", "", `upstream master, as "host port"`)
	dir := fs.String("dir", cfg.RDBDir, "directory containing the RDB file")
	dbfilename := fs.String("dbfilename", cfg.RDBFile, "RDB snapshot filename")
	expirationEnabled := fs.Bool("expiration-enabled", cfg.Expiration.Enabled, "enable the active TTL sweeper")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Host = *host
	cfg.Port = *port
	cfg.RDBDir = *dir
	cfg.RDBFile = *dbfilename
	cfg.Expiration.Enabled = *expirationEnabled

	if *replicaof != "" {
		address, err := normalizeReplicaOf(*replicaof)
		if err != nil {
			return nil, err
		}
		cfg.ReplicaOf = address
	}

	return cfg, nil
}

func normalizeReplicaOf(value string) (string, error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return "", fmt.Errorf(`config: --replicaof expects "host port", got %q`, value)
	}
	host, portStr := fields[0], fields[1]
	if _, err := strconv.Atoi(portStr); err != nil {
		return "", fmt.Errorf("config: --replicaof port %q: %w", portStr, err)
	}
	return fmt.Sprintf("%s:%s", host, portStr), nil
}

// IsReplica reports whether this process was started as a replica.
func (c *Config) IsReplica() bool {
	return c.ReplicaOf != ""
}

// RDBPath returns the configured snapshot file's full path.
func (c *Config) RDBPath() string {
	return c.RDBDir + "/" + c.RDBFile
}

// RDBEmptyPath returns the full path of the empty RDB template streamed
// to a new replica's PSYNC full resync.
func (c *Config) RDBEmptyPath() string {
	return c.RDBDir + "/" + c.RDBEmptyFile
}

// Get implements the CONFIG GET surface: host, port, dir, dbfilename,
// expiration_enabled.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "host":
		return c.Host, true
	case "port":
		return strconv.Itoa(c.Port), true
	case "dir":
		return c.RDBDir, true
	case "dbfilename":
		return c.RDBFile, true
	case "expiration_enabled":
		return strconv.FormatBool(c.Expiration.Enabled), true
	default:
		return "", false
	}
}
