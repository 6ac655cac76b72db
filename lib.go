package dane

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
)

// Support reports the level of DANE functionality a runtime can provide,
// the analogue of library_init's {full_support, partial_support} result.
type Support int

const (
	// FullSupport means usage-2 (DANE-TA) synthesis is available.
	FullSupport Support = iota
	// PartialSupport means the platform could not generate the internal
	// signing key the Trust-Anchor Synthesizer needs; callers should
	// avoid adding usage-2 records (synthesis that needs the signing key
	// fails with KindNoSignKey).
	PartialSupport
)

var (
	initOnce   sync.Once
	initErr    error
	initResult Support

	signingKeyMu sync.RWMutex
	signingKey   *ecdsa.PrivateKey
)

// randReader is the entropy source LibraryInit generates the signing key
// from; a reader that fails leaves the library at PartialSupport.
var randReader = rand.Reader

// LibraryInit performs the one-time, process-wide setup spec.md Section
// 5 describes: generation of the library's internal EC P-256 signing
// key used only for synthetic certificates. It is idempotent and safe to
// call from multiple goroutines; subsequent calls return the result of
// the first call without regenerating the key, using a sync.Once as the
// Go analogue of the reference design's double-checked read-write lock.
func LibraryInit() (Support, error) {
	initOnce.Do(func() {
		key, err := ecdsa.GenerateKey(elliptic.P256(), randReader)
		if err != nil {
			initErr = newErr(KindLibraryInit, err)
			initResult = PartialSupport
			return
		}
		signingKeyMu.Lock()
		signingKey = key
		signingKeyMu.Unlock()
		initResult = FullSupport
	})
	return initResult, initErr
}

// internalSigningKey returns the library's signing key, initializing it
// on first use if the caller never explicitly called LibraryInit.
func internalSigningKey() (*ecdsa.PrivateKey, error) {
	if _, err := LibraryInit(); err != nil {
		return nil, newErr(KindNoSignKey, err)
	}
	signingKeyMu.RLock()
	defer signingKeyMu.RUnlock()
	if signingKey == nil {
		return nil, newErr(KindNoSignKey, nil)
	}
	return signingKey, nil
}
