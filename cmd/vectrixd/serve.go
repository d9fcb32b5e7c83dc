package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vectrix-io/vectrixdb/pkg/config"
	"github.com/vectrix-io/vectrixdb/pkg/events"
	"github.com/vectrix-io/vectrixdb/pkg/filterindex"
	"github.com/vectrix-io/vectrixdb/pkg/httpapi"
	"github.com/vectrix-io/vectrixdb/pkg/log"
	"github.com/vectrix-io/vectrixdb/pkg/metrics"
	"github.com/vectrix-io/vectrixdb/pkg/registry"
	"github.com/vectrix-io/vectrixdb/pkg/replication"
	"github.com/vectrix-io/vectrixdb/pkg/scalarstore"
	"github.com/vectrix-io/vectrixdb/pkg/vectordb"
	"github.com/vectrix-io/vectrixdb/pkg/vectorindex"
	"github.com/vectrix-io/vectrixdb/pkg/wal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a vectrixdb node",
	Long: `Start a vectrixdb node: opens the scalar store, index registry,
and write-ahead log, replays any entries since the last snapshot, then
either bootstraps a new single-node cluster or joins an existing one
before serving the HTTP surface.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a key=value config file (overrides flag defaults)")
	serveCmd.Flags().String("node-id", "node-1", "Unique node ID")
	serveCmd.Flags().String("bind-addr", "127.0.0.1:7070", "Address for Raft communication")
	serveCmd.Flags().String("http-addr", "127.0.0.1:8080", "Address for the HTTP surface")
	serveCmd.Flags().String("data-dir", "./vectrixdb-data", "Data directory for cluster state")
	serveCmd.Flags().Bool("bootstrap", false, "Bootstrap a new single-node cluster instead of joining one")
	serveCmd.Flags().String("join-leader", "", "HTTP address of an existing leader to join via /admin/addFollower")
	serveCmd.Flags().Bool("enable-pprof", false, "Accepted for compatibility; no pprof endpoints are served")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	for k, v := range cfg.Extra {
		log.Warn(fmt.Sprintf("serve: ignoring unrecognized config key %q=%q", k, v))
	}

	scalar, err := scalarstore.NewBoltStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open scalar store: %w", err)
	}
	defer scalar.Close()

	reg := registry.New([]registry.Spec{
		{Type: vectorindex.Flat, Dim: cfg.Dim, Metric: vectorindex.Metric(cfg.Metric)},
		{
			Type:         vectorindex.Hnsw,
			Dim:          cfg.Dim,
			Metric:       vectorindex.Metric(cfg.Metric),
			HnswM:        cfg.HnswM,
			HnswEfConstr: cfg.HnswEfConstruction,
			HnswEfSearch: cfg.HnswEfSearch,
		},
	})

	filters := filterindex.New()

	snapDir := filepath.Join(filepath.Dir(cfg.WALPath), "snapshots")
	log_, err := wal.Open(cfg.WALPath, snapDir, reg, scalar, filters)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer log_.Close()

	db := vectordb.New(scalar, reg, filters, log_)

	if err := db.ReloadDatabase(); err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	bootstrap, _ := cmd.Flags().GetBool("bootstrap")
	joinLeader, _ := cmd.Flags().GetString("join-leader")
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		if cfg.NodeID != "" {
			nodeID = cfg.NodeID
		}
		if cfg.Endpoint != "" {
			bindAddr = cfg.Endpoint
		}
		httpAddr = fmt.Sprintf("%s:%d", cfg.HTTPServerAddress, cfg.HTTPServerPort)
	}

	core := replication.New(replication.Config{
		NodeID:   nodeID,
		BindAddr: bindAddr,
		DataDir:  dataDir,
	}, db, broker)

	if bootstrap {
		if err := core.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		log.Info("serve: bootstrapped single-node cluster")
	} else {
		if err := core.Start(); err != nil {
			return fmt.Errorf("start raft: %w", err)
		}
		log.Info("serve: raft started, awaiting AddVoter from a leader")
	}

	lo := time.Duration(cfg.ElectionTimeoutLoMs) * time.Millisecond
	hi := time.Duration(cfg.ElectionTimeoutHiMs) * time.Millisecond
	if err := core.EnableElectionTimeout(lo, hi); err != nil {
		return fmt.Errorf("enable election timeout: %w", err)
	}

	if joinLeader != "" {
		if err := requestAddFollower(joinLeader, nodeID, bindAddr); err != nil {
			return fmt.Errorf("join cluster via %s: %w", joinLeader, err)
		}
		log.Info(fmt.Sprintf("serve: requested to join cluster via leader %s", joinLeader))
	}

	collector := metrics.NewCollector(db, core)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	core.StartTopologyRefresh(ctx)

	if cfg.SnapshotIntervalS > 0 {
		startSnapshotTimer(ctx, db, time.Duration(cfg.SnapshotIntervalS)*time.Second)
	}

	server := httpapi.NewServer(db, core)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(httpAddr); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()
	log.Info(fmt.Sprintf("serve: node %s listening on %s (raft %s)", nodeID, httpAddr, bindAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("serve: shutting down")
	case err := <-errCh:
		log.Errorf("serve: fatal error", err)
	}

	if err := core.Shutdown(); err != nil {
		return fmt.Errorf("shutdown raft: %w", err)
	}
	return nil
}

// startSnapshotTimer runs C4's admin snapshot operation on a fixed
// interval, matching spec.md §5's "periodic timers: snapshot/admin".
func startSnapshotTimer(ctx context.Context, db *vectordb.VectorDatabase, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.TakeSnapshot(); err != nil {
					log.Errorf("serve: periodic snapshot failed", err)
				}
			}
		}
	}()
}

func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		return config.Load(configPath)
	}

	cfg := config.Defaults()
	cfg.NodeID, _ = cmd.Flags().GetString("node-id")
	cfg.Endpoint, _ = cmd.Flags().GetString("bind-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	cfg.DBPath = filepath.Join(dataDir, "scalar.db")
	cfg.WALPath = filepath.Join(dataDir, "wal.log")
	return cfg, nil
}
