package pager

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/revred/sharc-core/internal/sharcerr"
)

// EncryptionHeaderSize is the fixed 128-byte file-wide header that precedes
// page 1 when encryption is enabled, per spec §4.1's pluggable page
// encryption transform. It is never encrypted itself: only page content is.
const EncryptionHeaderSize = 128

// EncryptionHeader describes the KDF and cipher parameters needed to derive
// the page key from a password, plus a verification hash to fail fast on a
// wrong password rather than surface confusing per-page tag failures.
type EncryptionHeader struct {
	KDFAlgo       byte // 1 = argon2id
	CipherAlgo    byte // 1 = xchacha20-poly1305
	TimeCost      uint32
	MemoryCostKiB uint32
	Parallelism   uint32
	Salt          [32]byte
	Verify        [32]byte
	PageSize      uint32
	PageCount     uint32
}

const (
	KDFArgon2id           = 1
	CipherXChaCha20Poly1305 = 1
)

func (h EncryptionHeader) Encode() []byte {
	buf := make([]byte, EncryptionHeaderSize)
	buf[0] = h.KDFAlgo
	buf[1] = h.CipherAlgo
	binary.BigEndian.PutUint32(buf[4:8], h.TimeCost)
	binary.BigEndian.PutUint32(buf[8:12], h.MemoryCostKiB)
	binary.BigEndian.PutUint32(buf[12:16], h.Parallelism)
	copy(buf[16:48], h.Salt[:])
	copy(buf[48:80], h.Verify[:])
	binary.BigEndian.PutUint32(buf[80:84], h.PageSize)
	binary.BigEndian.PutUint32(buf[84:88], h.PageCount)
	return buf
}

func DecodeEncryptionHeader(buf []byte) (EncryptionHeader, error) {
	if len(buf) < EncryptionHeaderSize {
		return EncryptionHeader{}, sharcerr.New(sharcerr.CorruptPage, "pager: truncated encryption header")
	}
	var h EncryptionHeader
	h.KDFAlgo = buf[0]
	h.CipherAlgo = buf[1]
	h.TimeCost = binary.BigEndian.Uint32(buf[4:8])
	h.MemoryCostKiB = binary.BigEndian.Uint32(buf[8:12])
	h.Parallelism = binary.BigEndian.Uint32(buf[12:16])
	copy(h.Salt[:], buf[16:48])
	copy(h.Verify[:], buf[48:80])
	h.PageSize = binary.BigEndian.Uint32(buf[80:84])
	h.PageCount = binary.BigEndian.Uint32(buf[84:88])
	return h, nil
}

// deriveKey runs Argon2id over password+salt per h's cost parameters.
func (h EncryptionHeader) deriveKey(password string) []byte {
	return argon2.IDKey([]byte(password), h.Salt[:], h.TimeCost, h.MemoryCostKiB, uint8(h.Parallelism), chacha20poly1305.KeySize)
}

// NewEncryptionHeader generates a fresh salt and verification hash for
// password, ready to be written at file offset 0.
func NewEncryptionHeader(password string, pageSize, pageCount uint32) (EncryptionHeader, error) {
	h := EncryptionHeader{
		KDFAlgo:       KDFArgon2id,
		CipherAlgo:    CipherXChaCha20Poly1305,
		TimeCost:      3,
		MemoryCostKiB: 64 * 1024,
		Parallelism:   2,
		PageSize:      pageSize,
		PageCount:     pageCount,
	}
	if _, err := rand.Read(h.Salt[:]); err != nil {
		return h, sharcerr.Wrap(sharcerr.InvalidOperation, "pager: generate salt", err)
	}
	key := h.deriveKey(password)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return h, err
	}
	verify := aead.Seal(nil, make([]byte, aead.NonceSize()), nil, h.Salt[:])
	copy(h.Verify[:], verify)
	return h, nil
}

// pageCipher encrypts/decrypts individual pages once a key has been derived.
// Each page's nonce is deterministic from the page number alone (the salt is
// not part of it), and the page number is folded into the AEAD associated data so a
// ciphertext cannot be silently replayed onto a different page.
type pageCipher struct {
	aead cipherAEAD
}

type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// NewPageCipher derives a key from password against h and verifies it
// before returning, failing fast with a sharcerr.WrongPassword error otherwise.
func NewPageCipher(h EncryptionHeader, password string) (*pageCipher, error) {
	key := h.deriveKey(password)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	check := aead.Seal(nil, make([]byte, aead.NonceSize()), nil, h.Salt[:])
	if len(check) != len(h.Verify) || string(check) != string(h.Verify[:]) {
		return nil, sharcerr.New(sharcerr.WrongPassword, "pager: password verification failed")
	}
	return &pageCipher{aead: aead}, nil
}

func (c *pageCipher) nonce(pageNum uint32) []byte {
	n := make([]byte, c.aead.NonceSize())
	binary.BigEndian.PutUint32(n[len(n)-4:], pageNum)
	return n
}

// Encrypt returns nonce||ciphertext||tag for a plaintext page.
func (c *pageCipher) Encrypt(pageNum uint32, plaintext []byte) []byte {
	nonce := c.nonce(pageNum)
	ad := make([]byte, 4)
	binary.BigEndian.PutUint32(ad, pageNum)
	ct := c.aead.Seal(nil, nonce, plaintext, ad)
	return append(append([]byte{}, nonce...), ct...)
}

// Decrypt reverses Encrypt, returning a sharcerr.WrongPassword error on tag mismatch
// (either the password is wrong or the page was tampered with).
func (c *pageCipher) Decrypt(pageNum uint32, stored []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(stored) < ns+c.aead.Overhead() {
		return nil, sharcerr.New(sharcerr.CorruptPage, "pager: encrypted page too short")
	}
	nonce, ct := stored[:ns], stored[ns:]
	ad := make([]byte, 4)
	binary.BigEndian.PutUint32(ad, pageNum)
	pt, err := c.aead.Open(nil, nonce, ct, ad)
	if err != nil {
		return nil, sharcerr.Wrap(sharcerr.WrongPassword, "pager: page authentication failed", err)
	}
	return pt, nil
}
