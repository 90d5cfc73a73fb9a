package init_cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/axonledger/axon/axi/glb"
	"github.com/axonledger/axon/pos"
	"github.com/spf13/cobra"
)

func initNodeConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "node_config",
		Args:  cobra.NoArgs,
		Short: "creates initial config file for the Axon node",
		Run:   runNodeConfigCommand,
	}
}

const axonNodeProfile = "axon.yaml"

func runNodeConfigCommand(_ *cobra.Command, _ []string) {
	mustNotExist(axonNodeProfile)

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	glb.AssertNoError(err)
	validatorID := pos.ValidatorIDFromPubKey(pubKey)

	yamlStr := fmt.Sprintf(configFileTemplate,
		hex.EncodeToString(privKey), validatorID.String(), hex.EncodeToString(pubKey))
	err = os.WriteFile(axonNodeProfile, []byte(yamlStr), 0666)
	glb.AssertNoError(err)

	glb.Infof("initial Axon node configuration file has been saved as '%s'", axonNodeProfile)
}

func mustNotExist(fname string) {
	if _, err := os.Stat(fname); err == nil {
		glb.Fatalf("file '%s' already exists", fname)
	}
}

const configFileTemplate = `# Configuration of the Axon node
#
# Shard this node maintains
dag:
  shard: 0
  # weight propagation depth cap per insertion
  max_propagation_depth: 64

tippool:
  # number of parents picked for locally built transactions
  num_parents: 2
  # bias towards heavier tips, 0 disables the bias
  alpha: 0.5

confirm:
  # confirmation threshold in whole weight units
  threshold: 100

snapshot:
  # snapshot database directory
  dir: axondb
  interval: 10s
  min_confirmed: 1
  verify_chain_on_startup: true

mempool:
  size: 8192

# Validator identity of this node (auto-generated)
# private key: %s
validators:
  self:
    # validator ID: %s
    pubkey: %s
    stake: 1000

# Node's API config
api:
  server:
    port: 8000

metrics:
  enable: false
  port: 14000

pprof:
  enable: false
  port: 8080

logger:
  level: info
  output: stdout
`
