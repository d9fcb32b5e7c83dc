package metrics

import (
	"time"

	"github.com/vectrix-io/vectrixdb/pkg/vectordb"
)

// RaftSampler is the minimal view a Collector needs of ReplicationCore.
// Defined as an interface (rather than importing pkg/replication
// directly) because replication imports metrics for its own timers and
// gauges; a concrete dependency here would cycle.
type RaftSampler interface {
	IsLeader() bool
	PeerCount() (int, error)
	LastLogIndex() uint64
}

// Collector periodically samples stateful metrics that aren't naturally
// updated at the point of mutation (index sizes, WAL size, raft peer
// count), following the teacher's ticker-driven collector pattern.
type Collector struct {
	db     *vectordb.VectorDatabase
	raft   RaftSampler
	stopCh chan struct{}
}

// NewCollector builds a Collector over db and raft. raft may be nil for
// a node running without replication.
func NewCollector(db *vectordb.VectorDatabase, raft RaftSampler) *Collector {
	return &Collector{db: db, raft: raft, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectIndexMetrics()
	c.collectWALMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectIndexMetrics() {
	for typ, count := range c.db.IndexSizes() {
		IndexVectorsTotal.WithLabelValues(string(typ)).Set(float64(count))
	}
	for field, card := range c.db.FilterCardinalities() {
		FilterBitmapCardinality.WithLabelValues(field).Set(float64(card))
	}
}

func (c *Collector) collectWALMetrics() {
	WALSizeBytes.Set(float64(c.db.WALSizeBytes()))
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}
	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
	if peers, err := c.raft.PeerCount(); err == nil {
		RaftPeers.Set(float64(peers))
	}
	RaftLogIndex.Set(float64(c.raft.LastLogIndex()))
}
