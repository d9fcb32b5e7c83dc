package replication

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
	"github.com/vectrix-io/vectrixdb/pkg/events"
	"github.com/vectrix-io/vectrixdb/pkg/log"
	"github.com/vectrix-io/vectrixdb/pkg/metrics"
	"github.com/vectrix-io/vectrixdb/pkg/vdberrors"
	"github.com/vectrix-io/vectrixdb/pkg/vectordb"
)

// suppressedElectionTimeout is the election bound used until
// EnableElectionTimeout is called, per spec.md §5/§9: a node that joins
// a cluster must not be able to trigger an election before the operator
// has finished provisioning it.
const suppressedElectionTimeout = 10 * time.Minute

// Config configures a Core.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Core is C7: a Raft consensus log fronting a *vectordb.VectorDatabase.
// It is adapted from the teacher's pkg/manager.Manager, trimmed to the
// single state-machine command this system needs (upsert) and wired
// through FSM instead of WarrenFSM.
type Core struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft    *raft.Raft
	fsm     *FSM
	db      *vectordb.VectorDatabase
	broker  *events.Broker
	started time.Time
	logger  zerolog.Logger
}

// New constructs a Core. Bootstrap or Start must be called before it
// accepts entries.
func New(cfg Config, db *vectordb.VectorDatabase, broker *events.Broker) *Core {
	return &Core{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      NewFSM(db, cfg.NodeID),
		db:       db,
		broker:   broker,
		logger:   log.WithComponent("replication"),
	}
}

func (c *Core) newRaft() (*raft.Raft, error) {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("replication: create data dir: %w", err)
	}

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(c.nodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = suppressedElectionTimeout
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", c.bindAddr)
	if err != nil {
		return nil, fmt.Errorf("replication: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(c.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replication: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(c.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replication: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("replication: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("replication: create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, c.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("replication: create raft: %w", err)
	}
	c.raft = r
	c.started = time.Now()
	go c.watchLeadership()
	return r, nil
}

// Bootstrap initializes a brand-new single-node cluster with this node
// as its only voter.
func (c *Core) Bootstrap() error {
	r, err := c.newRaft()
	if err != nil {
		return err
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(c.nodeID), Address: raft.ServerAddress(c.bindAddr)},
		},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: bootstrap cluster: %w", err)
	}
	return nil
}

// Start wires up Raft for a node that will join an existing cluster via
// AddServer from the leader; it does not bootstrap a configuration
// itself.
func (c *Core) Start() error {
	_, err := c.newRaft()
	return err
}

// watchLeadership observes raft.Raft's leader channel and republishes
// transitions on the event broker, mirroring the teacher's
// Manager.PublishEvent usage for cluster-visibility events.
func (c *Core) watchLeadership() {
	for isLeader := range c.raft.LeaderCh() {
		if c.broker != nil {
			c.broker.Publish(&events.Event{
				Type:    events.EventLeaderChanged,
				Message: fmt.Sprintf("node %s leadership changed", c.nodeID),
				Metadata: map[string]string{
					"node_id":   c.nodeID,
					"is_leader": fmt.Sprintf("%t", isLeader),
				},
			})
		}
		if isLeader {
			metrics.RaftLeader.Set(1)
		} else {
			metrics.RaftLeader.Set(0)
		}
	}
}

// AddServer adds nodeID/endpoint as a voter. It is idempotent: raft
// treats re-adding an existing voter at the same address as a no-op.
func (c *Core) AddServer(nodeID, endpoint string) error {
	if !c.IsLeader() {
		return fmt.Errorf("%w: current leader is %q", vdberrors.ErrNotLeader, c.raft.Leader())
	}
	future := c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(endpoint), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: add voter: %w", err)
	}
	return nil
}

// RemoveServer removes nodeID from the voter configuration.
func (c *Core) RemoveServer(nodeID string) error {
	if !c.IsLeader() {
		return fmt.Errorf("%w: current leader is %q", vdberrors.ErrNotLeader, c.raft.Leader())
	}
	future := c.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: remove server: %w", err)
	}
	return nil
}

// EnableElectionTimeout reconfigures the election bound at runtime via
// raft.Raft.ReloadConfig, without a restart. A node starts with
// elections suppressed (suppressedElectionTimeout); an operator calls
// this once the node is healthy and ready to participate.
func (c *Core) EnableElectionTimeout(lo, hi time.Duration) error {
	if c.raft == nil {
		return fmt.Errorf("replication: raft not started")
	}
	current := c.raft.ReloadableConfig()
	current.ElectionTimeout = hi
	current.HeartbeatTimeout = lo
	return c.raft.ReloadConfig(current)
}

// Append submits entryBytes as a new log entry. It fails fast if this
// node is not the leader rather than silently forwarding, matching
// spec.md §4.7's requirement that only the leader accepts writes.
func (c *Core) Append(entryBytes []byte) (uint64, error) {
	if !c.IsLeader() {
		return 0, fmt.Errorf("%w: current leader is %q", vdberrors.ErrNotLeader, c.raft.Leader())
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	future := c.raft.Apply(entryBytes, 10*time.Second)
	if err := future.Error(); err != nil {
		return 0, fmt.Errorf("replication: apply: %w", err)
	}
	if err, ok := future.Response().(error); ok && err != nil {
		return 0, err
	}
	idx := c.fsm.LastCommittedIdx()
	if c.broker != nil {
		c.broker.Publish(&events.Event{
			Type:     events.EventEntryCommitted,
			Metadata: map[string]string{"index": fmt.Sprintf("%d", idx)},
		})
	}
	return idx, nil
}

// TransferLeadership asks Raft to hand leadership to another voter,
// backing /admin/setLeader.
func (c *Core) TransferLeadership() error {
	if !c.IsLeader() {
		return fmt.Errorf("%w: current leader is %q", vdberrors.ErrNotLeader, c.raft.Leader())
	}
	future := c.raft.LeadershipTransfer()
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: leadership transfer: %w", err)
	}
	return nil
}

// IsLeader reports whether this node currently holds Raft leadership.
func (c *Core) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's advertised address, empty if
// unknown.
func (c *Core) LeaderAddr() string {
	if c.raft == nil {
		return ""
	}
	return string(c.raft.Leader())
}

// PeerInfo describes one member of the Raft configuration, matching the
// node summary spec.md §6 expects from the admin surface.
type PeerInfo struct {
	NodeID         string `json:"node_id"`
	Endpoint       string `json:"endpoint"`
	Role           string `json:"role"`
	LastLogIdx     uint64 `json:"last_log_idx"`
	LastSuccRespUs int64  `json:"last_succ_resp_us"`
}

// ListPeers reports every voter in the current Raft configuration.
// hashicorp/raft does not expose per-peer RTT, so LastSuccRespUs is
// always 0; LastLogIdx is filled in for the local node only.
func (c *Core) ListPeers() ([]PeerInfo, error) {
	if c.raft == nil {
		return nil, fmt.Errorf("replication: raft not started")
	}
	future := c.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("replication: get configuration: %w", err)
	}

	leader := c.raft.Leader()
	servers := future.Configuration().Servers
	peers := make([]PeerInfo, 0, len(servers))
	for _, s := range servers {
		role := "follower"
		if s.Address == leader {
			role = "leader"
		}
		info := PeerInfo{
			NodeID:   string(s.ID),
			Endpoint: string(s.Address),
			Role:     role,
		}
		if string(s.ID) == c.nodeID {
			info.LastLogIdx = c.raft.LastIndex()
		}
		peers = append(peers, info)
	}
	metrics.RaftPeers.Set(float64(len(peers)))
	return peers, nil
}

// SelfInfo reports this node's own entry, the common case for a
// /admin/getNode call without an explicit node id.
func (c *Core) SelfInfo() PeerInfo {
	role := "follower"
	if c.IsLeader() {
		role = "leader"
	}
	return PeerInfo{
		NodeID:     c.nodeID,
		Endpoint:   c.bindAddr,
		Role:       role,
		LastLogIdx: c.lastLogIndex(),
	}
}

func (c *Core) lastLogIndex() uint64 {
	if c.raft == nil {
		return 0
	}
	return c.raft.LastIndex()
}

// LastLogIndex exposes the local Raft log's tail index, for metrics
// collection.
func (c *Core) LastLogIndex() uint64 {
	return c.lastLogIndex()
}

// PeerCount reports the number of voters in the current configuration,
// for metrics collection.
func (c *Core) PeerCount() (int, error) {
	if c.raft == nil {
		return 0, fmt.Errorf("replication: raft not started")
	}
	future := c.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return 0, err
	}
	return len(future.Configuration().Servers), nil
}

// Shutdown stops the Raft instance.
func (c *Core) Shutdown() error {
	if c.raft == nil {
		return nil
	}
	future := c.raft.Shutdown()
	if err := future.Error(); err != nil {
		return fmt.Errorf("replication: shutdown: %w", err)
	}
	c.logger.Info().Msg("node shut down")
	return nil
}
