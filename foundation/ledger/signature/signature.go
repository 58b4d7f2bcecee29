// Package signature provides the hashing and ECDSA signing primitives used
// across the ledger engine.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros. It is used as the previous block
// hash of the genesis block.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// SignatureLength is the expected length of a signature produced by Sign,
// in the [R || S || V] format.
const SignatureLength = crypto.SignatureLength

// =============================================================================

// DoubleSha256 returns the SHA-256 of the SHA-256 of the specified data.
// Hashing twice hardens the digest against length extension and is the
// convention for every content hash in this engine.
func DoubleSha256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Hash returns a unique hex encoded hash for the value. The value is
// marshaled to JSON to produce a canonical set of bytes and then double
// SHA-256 hashed.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	return hexutil.Encode(DoubleSha256(data))
}

// digest produces the 32 byte digest that is actually signed for the
// specified value.
func digest(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return DoubleSha256(data), nil
}

// =============================================================================

// GenerateKey produces a new secp256k1 private key using a cryptographically
// secure source of entropy.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Sign uses the specified private key to sign the value. The signature is
// returned hex encoded in the 65 byte [R || S || V] format.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {
	data, err := digest(value)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	return hexutil.Encode(sig), nil
}

// Verify reports whether the hex encoded signature was produced over the
// value by the holder of the hex encoded public key. Verify never fails
// with an error since callers use it purely as a gate: any malformed
// input yields false.
func Verify(value any, publicKey string, sig string) bool {
	pub, err := hexutil.Decode(publicKey)
	if err != nil {
		return false
	}

	sigBytes, err := hexutil.Decode(sig)
	if err != nil {
		return false
	}
	if len(sigBytes) != SignatureLength {
		return false
	}

	data, err := digest(value)
	if err != nil {
		return false
	}

	// The recovery id is not part of the verification.
	return crypto.VerifySignature(pub, data, sigBytes[:crypto.RecoveryIDOffset])
}

// =============================================================================

// EncodePublicKey returns the hex encoding of the uncompressed public key.
func EncodePublicKey(pub *ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.FromECDSAPub(pub))
}

// DecodePublicKey converts a hex encoded uncompressed public key back into
// its ECDSA form.
func DecodePublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	data, err := hexutil.Decode(publicKey)
	if err != nil {
		return nil, err
	}

	return crypto.UnmarshalPubkey(data)
}
