package node

import (
	"github.com/axonledger/axon/metrics"
	"github.com/spf13/viper"
)

func (p *AxonNode) startMetricsIfEnabled() {
	if !viper.GetBool("metrics.enable") {
		p.Log().Infof("Prometheus metrics exposure is disabled")
		return
	}
	metrics.Start(p)
}
