package signing

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"solver/internal/models"
)

// canonicalTransfer is the deterministic wire form of a transfer for
// signing purposes. Field order is fixed by the struct declaration;
// refund and signature are deliberately absent so that attaching either
// never changes the payload the sender signed.
type canonicalTransfer struct {
	Sender         string `json:"sender"`
	TokenAddress   string `json:"tokenAddress"`
	TokenAmount    string `json:"tokenAmount"`
	TargetChainID  string `json:"targetChainId"`
	TargetReceiver string `json:"targetReceiver"`
}

// CanonicalPayload serializes every transfer field that the sender
// committed to. Any change to sender, token, amount, chain id or
// receiver after signing yields different bytes.
func CanonicalPayload(t *models.Transfer) []byte {
	c := canonicalTransfer{
		Sender:         t.Sender,
		TokenAddress:   t.Token.Address,
		TokenAmount:    t.Token.Amount.String(),
		TargetChainID:  t.TargetChain.ID,
		TargetReceiver: t.TargetChain.Receiver,
	}
	// Marshal of a flat string struct cannot fail.
	payload, _ := json.Marshal(c)
	return payload
}

// ContentHash returns the hex keccak256 of the canonical payload. It is
// the transfer's identity in the transaction table and in refund proofs.
func ContentHash(t *models.Transfer) string {
	return hex.EncodeToString(crypto.Keccak256(CanonicalPayload(t)))
}

// Sign produces a hex-encoded 65-byte secp256k1 signature over the
// keccak256 digest of payload.
func Sign(priv *ecdsa.PrivateKey, payload []byte) (string, error) {
	sig, err := crypto.Sign(crypto.Keccak256(payload), priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether sigHex is a valid signature over payload by the
// key behind address. It is a pure predicate: malformed signatures or
// addresses return false, never an error.
func Verify(address, sigHex string, payload []byte) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(address)
}

// VerifyTransfer checks the sender's signature on a transfer against its
// canonical payload.
func VerifyTransfer(t *models.Transfer) bool {
	return Verify(t.Sender, t.Signature, CanonicalPayload(t))
}

// SignRefund signs the refund's transaction-reference string with the
// solver key. The refund payload is the reference string itself, so a
// refund whose Tx field is altered after signing no longer verifies.
func SignRefund(priv *ecdsa.PrivateKey, txRef string) (string, error) {
	return Sign(priv, []byte(txRef))
}

// VerifyRefund checks the solver's countersignature on a refund.
func VerifyRefund(solverAddress string, r *models.Refund) bool {
	if r == nil {
		return false
	}
	return Verify(solverAddress, r.SignedTx, []byte(r.Tx))
}

// ParsePrivateKey parses a hex-encoded secp256k1 private key, with or
// without the 0x prefix.
func ParsePrivateKey(keyHex string) (*ecdsa.PrivateKey, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return priv, nil
}

// AddressOf returns the hex address controlled by priv.
func AddressOf(priv *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(priv.PublicKey).Hex()
}
