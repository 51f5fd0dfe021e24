package hlwire

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ActionHash computes the connection-id hash Hyperliquid signs over: the
// canonical msgpack encoding of the action, followed by the 8-byte
// big-endian nonce, followed by a vault-address marker byte (0x00 for none,
// 0x01 + 20 address bytes otherwise), followed, when an expiry is set, by a
// 0x00 byte and the 8-byte big-endian expiry, then Keccak256-hashed.
func ActionHash(action interface{}, nonce int64, vaultAddress *common.Address, expiresAfter *int64) (common.Hash, error) {
	if nonce <= 0 {
		return common.Hash{}, fmt.Errorf("hlwire: nonce must be positive, got %d", nonce)
	}

	encoded, err := EncodeAction(action)
	if err != nil {
		return common.Hash{}, err
	}

	buf := make([]byte, 0, len(encoded)+8+21+9)
	buf = append(buf, encoded...)

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))
	buf = append(buf, nonceBytes[:]...)

	if vaultAddress == nil {
		buf = append(buf, 0x00)
	} else {
		buf = append(buf, 0x01)
		buf = append(buf, vaultAddress.Bytes()...)
	}

	if expiresAfter != nil {
		buf = append(buf, 0x00)
		var expBytes [8]byte
		binary.BigEndian.PutUint64(expBytes[:], uint64(*expiresAfter))
		buf = append(buf, expBytes[:]...)
	}

	return crypto.Keccak256Hash(buf), nil
}
