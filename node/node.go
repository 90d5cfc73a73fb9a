package node

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/axonledger/axon/core/confirm"
	"github.com/axonledger/axon/core/dag"
	"github.com/axonledger/axon/core/tippool"
	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/ledger"
	"github.com/axonledger/axon/pos"
	"github.com/axonledger/axon/snapshot"
	"github.com/axonledger/axon/util"
	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/viper"
)

const TraceTagNode = "node"

// AxonNode glues the DAG, the validator registry, the confirmation engine
// and the snapshot engine into one running process
type AxonNode struct {
	*global.Global

	dag           *dag.DAG
	tipPool       *tippool.TipPool
	registry      *pos.Registry
	confirmEngine *confirm.Engine
	snapEngine    *snapshot.Engine

	snapDB    *badger.DB
	snapStore *snapshot.Store

	mempool *mempool
	shard   ledger.ShardID

	stopOnce   sync.Once
	dbClosedWG sync.WaitGroup
	started    time.Time
}

func New() *AxonNode {
	bootLog := newBootstrapLogger()
	bootLog.Info(global.BannerString())
	initConfig(bootLog)

	ret := &AxonNode{
		Global:  global.NewWithLogLevel(logLevelFromConfig(), logOutputsFromConfig()...),
		mempool: newMempool(viper.GetInt(ConfigKeyMempoolSize)),
		shard:   ledger.ShardID(viper.GetUint(ConfigKeyShardID)),
		started: time.Now(),
	}
	ret.readInTraceTags()
	return ret
}

func (p *AxonNode) readInTraceTags() {
	p.EnableTraceTags(viper.GetStringSlice("trace_tags")...)
}

func (p *AxonNode) Start() {
	p.Log().Info("---------------- starting up Axon node --------------")

	err := util.CatchPanicOrError(func() error {
		p.initSnapshotDB()
		p.initRegistry()
		p.initDAG()
		p.initEngines()
		p.rebuildFromLatestSnapshot()

		p.startDaemons()
		p.startAPIServer()
		p.startMetricsIfEnabled()
		p.startPProfIfEnabled()
		return nil
	})
	if err != nil {
		p.Log().Errorf("error on startup: %v", err)
		os.Exit(1)
	}
	p.Log().Infof("Axon node has been started successfully")
	p.Log().Debug("running in debug mode")

	p.RepeatInBackground("memstats", 5*time.Second, func() bool {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		p.Log().Infof("uptime: %v, vertices: %d, tips: %d, mempool: %d, allocated memory: %.1f MB, goroutines: %d",
			time.Since(p.started).Round(time.Second),
			p.dag.NumVertices(),
			p.dag.NumTips(),
			p.mempool.size(),
			float32(memStats.Alloc*10/(1024*1024))/10,
			runtime.NumGoroutine(),
		)
		return true
	})
}

// Stop cancels the global context, waits for all work processes and then
// releases the snapshot database
func (p *AxonNode) StopAndWait() {
	p.stopOnce.Do(func() {
		p.Log().Info("stopping the node..")
		p.Global.Stop()
		p.Global.Wait()
		p.dbClosedWG.Wait()
		p.Log().Info("node stopped")
	})
}

// initSnapshotDB opens the checkpoint chain database
func (p *AxonNode) initSnapshotDB() {
	dir := viper.GetString(ConfigKeySnapshotDir)
	var err error
	p.snapDB, err = snapshot.OpenDB(dir)
	if err != nil {
		p.Log().Fatalf("can't open snapshot DB '%s': %v", dir, err)
	}
	p.snapStore = snapshot.NewStore(p.snapDB)
	p.Log().Infof("opened snapshot DB '%s'", dir)

	p.dbClosedWG.Add(1)
	go func() {
		<-p.Ctx().Done()
		p.Global.Wait()
		_ = p.snapDB.Close()
		p.Log().Infof("snapshot database has been closed")
		p.dbClosedWG.Done()
	}()

	if viper.GetBool(ConfigKeySnapshotVerifyChain) {
		if err = p.snapStore.VerifyChain(); err != nil {
			p.Log().Fatalf("snapshot chain verification failed: %v", err)
		}
		p.Log().Infof("snapshot chain verified")
	}
}

// initRegistry restores the validator registry from the latest snapshot
// when one exists, otherwise starts from the static config stake table
func (p *AxonNode) initRegistry() {
	latest, err := p.snapStore.LatestSnapshot()
	util.AssertNoError(err)

	if latest != nil && len(latest.RegistryState) > 0 {
		p.registry, err = pos.RegistryFromBytes(latest.RegistryState)
		if err != nil {
			p.Log().Fatalf("can't restore validator registry from snapshot #%d: %v", latest.SeqNo, err)
		}
		p.Log().Infof("validator registry restored from snapshot #%d: %d validator(s), total active stake %s",
			latest.SeqNo, p.registry.NumValidators(), util.Th(p.registry.TotalActiveStake()))
		return
	}

	p.registry = pos.NewRegistry()
	for name, v := range validatorsFromConfig(p.Log()) {
		err = p.registry.Register(v.ID, v.PubKey, v.Stake)
		util.AssertNoError(err)
		p.Log().Infof("registered validator '%s' %s with stake %s", name, v.ID.StringShort(), util.Th(v.Stake))
	}
	p.Log().Infof("fresh validator registry: %d validator(s), total active stake %s",
		p.registry.NumValidators(), util.Th(p.registry.TotalActiveStake()))
}

func (p *AxonNode) initDAG() {
	p.dag = dag.New()
	p.tipPool = tippool.New(p, tippool.WithAlpha(viper.GetFloat64(ConfigKeyTipAlpha)))
	p.Log().Infof("DAG initialized on shard %d", p.shard)
}

func (p *AxonNode) initEngines() {
	confirmOpts := make([]confirm.Option, 0)
	if t := viper.GetUint64(ConfigKeyConfirmThreshold); t > 0 {
		confirmOpts = append(confirmOpts, confirm.WithThresholdUnits(t))
	}
	if d := viper.GetInt(ConfigKeyMaxDepth); d > 0 {
		confirmOpts = append(confirmOpts, confirm.WithMaxPropagationDepth(d))
	}
	p.confirmEngine = confirm.New(p, p.registry, confirmOpts...)

	// weight propagation is driven by DAG insertions
	p.dag.OnInsert(p.confirmEngine.OnInsert)

	snapOpts := make([]snapshot.Option, 0)
	if n := viper.GetInt(ConfigKeySnapshotMinDepth); n > 0 {
		snapOpts = append(snapOpts, snapshot.WithMinConfirmed(n))
	}
	if d := viper.GetDuration(ConfigKeySnapshotInterval); d > 0 {
		snapOpts = append(snapOpts, snapshot.WithInterval(d))
	}
	p.snapEngine = snapshot.NewEngine(p, p.registry, p.snapStore, snapOpts...)
}

func (p *AxonNode) startDaemons() {
	p.confirmEngine.Start()
	p.snapEngine.Start()
	p.RepeatInBackground("mempool", 50*time.Millisecond, func() bool {
		p.drainMempool()
		return true
	})
	pruneInterval := viper.GetDuration(ConfigKeySnapshotInterval)
	if pruneInterval <= 0 {
		pruneInterval = ledger.DefaultSnapshotInterval
	}
	p.RepeatInBackground("snapshotPruner", pruneInterval, func() bool {
		p.pruneSnapshotted()
		return true
	})
}

// pruneSnapshotted removes snapshotted vertices which are no longer
// referenced by any live vertex. Their payloads stay resolvable from the
// snapshot store
func (p *AxonNode) pruneSnapshotted() {
	latest, err := p.snapStore.LatestSnapshot()
	if err != nil || latest == nil {
		return
	}
	prunable := util.FilterSlice(latest.Included, func(txid ledger.TransactionID) bool {
		v, err := p.dag.GetVertex(&txid)
		return err == nil && v.Status() == vertex.StatusSnapshotted
	})
	if len(prunable) == 0 {
		return
	}
	p.snapEngine.Prune(&snapshot.Snapshot{Included: prunable})
	p.Tracef(TraceTagNode, "pruned %d snapshotted vertice(s)", len(prunable))
}

// methods below adapt the node into the narrow environment interfaces of
// the engines

func (p *AxonNode) GetVertex(txid *ledger.TransactionID) (*vertex.Vertex, error) {
	return p.dag.GetVertex(txid)
}

func (p *AxonNode) Vertices(filterByID ...func(txid *ledger.TransactionID) bool) []*vertex.Vertex {
	return p.dag.Vertices(filterByID...)
}

func (p *AxonNode) PurgeVertices(txids []ledger.TransactionID) {
	p.dag.PurgeVertices(txids)
}

func (p *AxonNode) Tips() []*vertex.Vertex {
	return p.dag.Tips()
}

func (p *AxonNode) UpTime() time.Duration {
	return time.Since(p.started)
}
