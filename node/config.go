package node

import (
	"strings"

	"github.com/axonledger/axon/global"
	"github.com/axonledger/axon/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// config keys understood by the node. Everything has a workable default so
// that a node starts from an empty axon.yaml
const (
	ConfigKeyShardID             = "dag.shard"
	ConfigKeyMaxDepth            = "dag.max_propagation_depth"
	ConfigKeyNumParents          = "tippool.num_parents"
	ConfigKeyTipAlpha            = "tippool.alpha"
	ConfigKeyConfirmThreshold    = "confirm.threshold"
	ConfigKeySnapshotDir         = "snapshot.dir"
	ConfigKeySnapshotInterval    = "snapshot.interval"
	ConfigKeySnapshotMinDepth    = "snapshot.min_confirmed"
	ConfigKeySnapshotVerifyChain = "snapshot.verify_chain_on_startup"
	ConfigKeyMempoolSize         = "mempool.size"
	ConfigKeyAPIPort             = "api.server.port"
	ConfigKeyMetricsPort         = "metrics.port"

	DefaultSnapshotDir = "axondb"
	DefaultMempoolSize = 8192
	DefaultAPIPort     = 8000
)

func initConfig(log *zap.SugaredLogger) {
	viper.SetConfigName("axon")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	util.AssertNoError(err)

	if viper.GetString(ConfigKeySnapshotDir) == "" {
		log.Warnf("%s not specified, using '%s'", ConfigKeySnapshotDir, DefaultSnapshotDir)
		viper.SetDefault(ConfigKeySnapshotDir, DefaultSnapshotDir)
	}
	viper.SetDefault(ConfigKeyMempoolSize, DefaultMempoolSize)
	viper.SetDefault(ConfigKeyAPIPort, DefaultAPIPort)
}

const bootstrapLoggerName = "[boot]"

func newBootstrapLogger() *zap.SugaredLogger {
	return global.NewLogger(bootstrapLoggerName, zap.InfoLevel, []string{"stderr"}, "")
}

func logLevelFromConfig() zapcore.Level {
	if viper.GetString("logger.level") == "debug" {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func logOutputsFromConfig() []string {
	outputs := strings.Split(viper.GetString("logger.output"), ",")
	outputs = util.FilterSlice(outputs, func(s string) bool { return s != "" })
	if _, found := util.FindFirst(outputs, func(s string) bool { return s == "stdout" }); !found {
		outputs = append(outputs, "stdout")
	}
	return outputs
}
