package init_cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/axonledger/axon/axi/glb"
	"github.com/axonledger/axon/pos"
	"github.com/spf13/cobra"
)

func initValidatorKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validator_key",
		Args:  cobra.NoArgs,
		Short: "generates a new validator key pair",
		Run:   runValidatorKeyCommand,
	}
}

func runValidatorKeyCommand(_ *cobra.Command, _ []string) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	glb.AssertNoError(err)

	glb.Infof("validator ID:  %s", pos.ValidatorIDFromPubKey(pubKey).String())
	glb.Infof("public key:    %s", hex.EncodeToString(pubKey))
	glb.Infof("private key:   %s", hex.EncodeToString(privKey))
	glb.Infof("keep the private key safe, it cannot be recovered")
}
