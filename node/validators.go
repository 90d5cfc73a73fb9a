package node

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/axonledger/axon/pos"
	"github.com/axonledger/axon/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// validatorsFromConfig reads the static stake table. Config profile:
//
//	validators:
//	  alice:
//	    pubkey: <hex-encoded ed25519 public key>
//	    stake: 1000
func validatorsFromConfig(log *zap.SugaredLogger) map[string]pos.Validator {
	ret := make(map[string]pos.Validator)

	profiles := viper.GetStringMap("validators")
	names := util.SortKeys(profiles, func(k1, k2 string) bool { return k1 < k2 })
	for _, name := range names {
		pubKeyStr := viper.GetString("validators." + name + ".pubkey")
		stake := viper.GetUint64("validators." + name + ".stake")

		pubKeyBin, err := hex.DecodeString(pubKeyStr)
		if err != nil || len(pubKeyBin) != ed25519.PublicKeySize {
			log.Errorf("skipping validator '%s': wrong public key '%s'", name, pubKeyStr)
			continue
		}
		if stake == 0 {
			log.Errorf("skipping validator '%s': zero stake", name)
			continue
		}
		pubKey := ed25519.PublicKey(pubKeyBin)
		ret[name] = pos.Validator{
			ID:     pos.ValidatorIDFromPubKey(pubKey),
			PubKey: pubKey,
			Stake:  stake,
			Status: pos.StatusActive,
		}
	}
	return ret
}
