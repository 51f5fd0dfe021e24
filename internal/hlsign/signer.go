// Package hlsign implements Hyperliquid's EIP-712 "phantom agent" action
// signing: hash the canonical action bytes, wrap them in the Agent typed
// data, sign with secp256k1, and extract the r/s/v triple.
package hlsign

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"hyperliquid-trader/internal/hlwire"
)

// MasterAddress is the account address used for all unauthenticated reads
// and for identifying whose positions/orders a query is about. It must
// never be used as the signing key for trading actions when an API wallet
// is configured — conflating the two was a documented historical bug.
type MasterAddress common.Address

// Hex renders the address with 0x prefix and checksum casing.
func (a MasterAddress) Hex() string { return common.Address(a).Hex() }

// SignerAddress is the API wallet address that actually signs trading
// actions. On a plain (non-agent-wallet) account this equals the master
// address, but when an API wallet is configured they differ, and actions
// must be signed by SignerAddress while /info queries still target
// MasterAddress.
type SignerAddress common.Address

// Hex renders the address with 0x prefix and checksum casing.
func (a SignerAddress) Hex() string { return common.Address(a).Hex() }

// Signer lazily derives its ECDSA key from a hex-encoded private key on
// first use. Construction never touches the key material; NewSigner just
// stores the hex string, so building a Signer at startup never blocks on
// key derivation or entropy the way eagerly parsing would.
type Signer struct {
	keyHex string
	isMain bool // true for mainnet (source "a"), false for testnet ("b")

	once       sync.Once
	key        *ecdsa.PrivateKey
	signerAddr SignerAddress
	initErr    error
}

// NewSigner constructs a Signer for the given hex-encoded private key
// (with or without "0x" prefix). isMainnet selects the phantom-agent
// "source" tag Hyperliquid expects ("a" for mainnet, "b" for testnet).
func NewSigner(privateKeyHex string, isMainnet bool) *Signer {
	return &Signer{keyHex: privateKeyHex, isMain: isMainnet}
}

func (s *Signer) ensureKey() error {
	s.once.Do(func() {
		keyHex := s.keyHex
		if len(keyHex) >= 2 && keyHex[:2] == "0x" {
			keyHex = keyHex[2:]
		}
		key, err := crypto.HexToECDSA(keyHex)
		if err != nil {
			s.initErr = fmt.Errorf("hlsign: parse private key: %w", err)
			return
		}
		s.key = key
		s.signerAddr = SignerAddress(crypto.PubkeyToAddress(key.PublicKey))
	})
	return s.initErr
}

// Address returns the signer address, deriving the key on first call.
func (s *Signer) Address() (SignerAddress, error) {
	if err := s.ensureKey(); err != nil {
		return SignerAddress{}, err
	}
	return s.signerAddr, nil
}

// agentDomain is the fixed EIP-712 domain every Hyperliquid action is
// signed under: a synthetic "Exchange" domain on chain 1337 with a zero
// verifying contract. This is venue-fixed, not configurable.
var agentDomain = apitypes.TypedDataDomain{
	Name:              "Exchange",
	Version:           "1",
	ChainId:           (*ethmath.HexOrDecimal256)(big.NewInt(1337)),
	VerifyingContract: "0x0000000000000000000000000000000000000000",
}

var agentTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Agent": {
		{Name: "source", Type: "string"},
		{Name: "connectionId", Type: "bytes32"},
	},
}

// SignAction computes the action hash (hlwire.ActionHash) and signs it
// through the phantom Agent typed-data wrapper, returning the signature
// parts in the order r, v, s — the values Hyperliquid's /exchange endpoint
// expects in its "signature" field.
func (s *Signer) SignAction(action interface{}, nonce int64, vaultAddress *common.Address, expiresAfter *int64) (r, v string, sBytes string, err error) {
	if err := s.ensureKey(); err != nil {
		return "", "", "", err
	}

	connectionID, err := hlwire.ActionHash(action, nonce, vaultAddress, expiresAfter)
	if err != nil {
		return "", "", "", fmt.Errorf("hlsign: action hash: %w", err)
	}

	source := "b"
	if s.isMain {
		source = "a"
	}

	typedData := apitypes.TypedData{
		Types:       agentTypes,
		PrimaryType: "Agent",
		Domain:      agentDomain,
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": connectionID.Bytes(),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", "", "", fmt.Errorf("hlsign: typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", "", "", fmt.Errorf("hlsign: sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	rHex := "0x" + common.Bytes2Hex(sig[:32])
	sHex := "0x" + common.Bytes2Hex(sig[32:64])
	vDec := fmt.Sprintf("%d", sig[64])
	return rHex, vDec, sHex, nil
}

// Signature is the JSON-ready {r, s, v} object Hyperliquid's /exchange body
// expects alongside the action and nonce.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Sign is a convenience wrapper over SignAction returning a ready-to-embed
// Signature struct.
func (s *Signer) Sign(action interface{}, nonce int64, vaultAddress *common.Address, expiresAfter *int64) (Signature, error) {
	r, vStr, sVal, err := s.SignAction(action, nonce, vaultAddress, expiresAfter)
	if err != nil {
		return Signature{}, err
	}
	var v int
	if _, scanErr := fmt.Sscanf(vStr, "%d", &v); scanErr != nil {
		return Signature{}, fmt.Errorf("hlsign: parse v: %w", scanErr)
	}
	return Signature{R: r, S: sVal, V: v}, nil
}
