package node

import (
	"fmt"

	"github.com/axonledger/axon/api/server"
	"github.com/spf13/viper"
)

func (p *AxonNode) startAPIServer() {
	port := viper.GetInt(ConfigKeyAPIPort)
	addr := fmt.Sprintf(":%d", port)
	p.Log().Infof("starting API server on port %d", port)

	go server.Run(addr, p)
}
