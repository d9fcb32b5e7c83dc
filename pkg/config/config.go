package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metric selects the distance function used by the Flat and Hnsw indices.
type Metric string

const (
	MetricL2 Metric = "L2"
	MetricIP Metric = "IP"
)

// Config holds a node's startup configuration, parsed from the key=value
// file format described in spec.md §6.
type Config struct {
	DBPath             string
	WALPath            string
	NodeID             string
	Endpoint           string // host:port for replication transport
	Port               int    // replication port
	HTTPServerAddress  string
	HTTPServerPort     int

	Dim                 int
	Metric              Metric
	HnswM               int
	HnswEfConstruction  int
	HnswEfSearch        int
	ElectionTimeoutLoMs int
	ElectionTimeoutHiMs int
	SnapshotIntervalS   int

	// Extra holds keys this version doesn't recognize, kept around so
	// callers can log them instead of silently discarding operator intent.
	Extra map[string]string
}

// Defaults returns a Config with the same conservative defaults the node
// would fall back to if a key is absent from the file.
func Defaults() Config {
	return Config{
		DBPath:              "./data/scalar",
		WALPath:             "./data/wal.log",
		Port:                7070,
		HTTPServerAddress:   "0.0.0.0",
		HTTPServerPort:      8080,
		Dim:                 128,
		Metric:              MetricL2,
		HnswM:               16,
		HnswEfConstruction:  200,
		HnswEfSearch:        64,
		ElectionTimeoutLoMs: 1000 * 60 * 60 * 24, // suppressed until enabled, see spec.md §5
		ElectionTimeoutHiMs: 1000 * 60 * 60 * 24 * 2,
		SnapshotIntervalS:   0, // 0 disables the periodic timer; admin-triggered only
		Extra:               map[string]string{},
	}
}

// Load reads and parses a node configuration file. Files named *.yaml or
// *.yml are parsed as structured YAML (gopkg.in/yaml.v3, the teacher's own
// config format for cmd/warren); everything else is parsed as the
// key=value grammar spec.md §6 mandates.
func Load(path string) (Config, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return loadKV(path)
	}
}

// yamlConfig mirrors Config's fields under the snake_case keys spec.md §6
// names, so the same key vocabulary works in either file format.
type yamlConfig struct {
	DBPath              string `yaml:"db_path"`
	WALPath             string `yaml:"wal_path"`
	NodeID              string `yaml:"node_id"`
	Endpoint            string `yaml:"endpoint"`
	Port                int    `yaml:"port"`
	HTTPServerAddress   string `yaml:"http_server_address"`
	HTTPServerPort      int    `yaml:"http_server_port"`
	Dim                 int    `yaml:"dim"`
	Metric              string `yaml:"metric"`
	HnswM               int    `yaml:"hnsw_m"`
	HnswEfConstruction  int    `yaml:"hnsw_ef_construction"`
	HnswEfSearch        int    `yaml:"hnsw_ef_search"`
	ElectionTimeoutLoMs int    `yaml:"election_timeout_lo_ms"`
	ElectionTimeoutHiMs int    `yaml:"election_timeout_hi_ms"`
	SnapshotIntervalS   int    `yaml:"snapshot_interval_s"`
}

func loadYAML(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}

	cfg := Defaults()
	yc := yamlConfig{
		DBPath: cfg.DBPath, WALPath: cfg.WALPath, Port: cfg.Port,
		HTTPServerAddress: cfg.HTTPServerAddress, HTTPServerPort: cfg.HTTPServerPort,
		Dim: cfg.Dim, Metric: string(cfg.Metric), HnswM: cfg.HnswM,
		HnswEfConstruction: cfg.HnswEfConstruction, HnswEfSearch: cfg.HnswEfSearch,
		ElectionTimeoutLoMs: cfg.ElectionTimeoutLoMs, ElectionTimeoutHiMs: cfg.ElectionTimeoutHiMs,
		SnapshotIntervalS: cfg.SnapshotIntervalS,
	}
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.DBPath, cfg.WALPath, cfg.NodeID, cfg.Endpoint, cfg.Port = yc.DBPath, yc.WALPath, yc.NodeID, yc.Endpoint, yc.Port
	cfg.HTTPServerAddress, cfg.HTTPServerPort = yc.HTTPServerAddress, yc.HTTPServerPort
	cfg.Dim, cfg.Metric = yc.Dim, Metric(strings.ToUpper(yc.Metric))
	cfg.HnswM, cfg.HnswEfConstruction, cfg.HnswEfSearch = yc.HnswM, yc.HnswEfConstruction, yc.HnswEfSearch
	cfg.ElectionTimeoutLoMs, cfg.ElectionTimeoutHiMs = yc.ElectionTimeoutLoMs, yc.ElectionTimeoutHiMs
	cfg.SnapshotIntervalS = yc.SnapshotIntervalS
	return cfg, nil
}

// loadKV parses the key=value grammar spec.md §6 mandates.
func loadKV(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Config{}, fmt.Errorf("config %s:%d: missing '=' in %q", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := cfg.set(key, value); err != nil {
			return Config{}, fmt.Errorf("config %s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "db_path":
		c.DBPath = value
	case "wal_path":
		c.WALPath = value
	case "node_id":
		c.NodeID = value
	case "endpoint":
		c.Endpoint = value
	case "port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		c.Port = n
	case "http_server_address":
		c.HTTPServerAddress = value
	case "http_server_port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("http_server_port: %w", err)
		}
		c.HTTPServerPort = n
	case "dim":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("dim: %w", err)
		}
		c.Dim = n
	case "metric":
		c.Metric = Metric(strings.ToUpper(value))
	case "hnsw_m":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("hnsw_m: %w", err)
		}
		c.HnswM = n
	case "hnsw_ef_construction":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("hnsw_ef_construction: %w", err)
		}
		c.HnswEfConstruction = n
	case "hnsw_ef_search":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("hnsw_ef_search: %w", err)
		}
		c.HnswEfSearch = n
	case "election_timeout_lo_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("election_timeout_lo_ms: %w", err)
		}
		c.ElectionTimeoutLoMs = n
	case "election_timeout_hi_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("election_timeout_hi_ms: %w", err)
		}
		c.ElectionTimeoutHiMs = n
	case "snapshot_interval_s":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("snapshot_interval_s: %w", err)
		}
		c.SnapshotIntervalS = n
	default:
		c.Extra[key] = value
	}
	return nil
}
