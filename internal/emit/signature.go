package emit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Signature domains keep equal bytes in different tables from colliding.
const (
	domainTexture = "kiln/texture/v1"
	domainBuffer  = "kiln/buffer/v1"
	domainAsset   = "kiln/asset/v1"
)

// Signature identifies cooked content for deduplication. It covers the
// payload and the record metadata, so two payloads that happen to share
// bytes but describe different resources stay distinct.
type Signature [sha256.Size]byte

// SigPrefixLen is how much of a signature the packed table records carry.
const SigPrefixLen = 24

func (s Signature) Hex() string {
	return hex.EncodeToString(s[:])
}

// Prefix returns the truncated form stored in table records.
func (s Signature) Prefix() [SigPrefixLen]byte {
	var p [SigPrefixLen]byte
	copy(p[:], s[:SigPrefixLen])
	return p
}

// sign hashes domain, a zero separator, the metadata words in little-endian
// order, and the payload.
func sign(domain string, meta []uint32, payload []byte) Signature {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0})
	var word [4]byte
	for _, m := range meta {
		binary.LittleEndian.PutUint32(word[:], m)
		h.Write(word[:])
	}
	h.Write(payload)
	var sig Signature
	h.Sum(sig[:0])
	return sig
}
