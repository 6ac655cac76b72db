package dane

import (
	"crypto/tls"
	"crypto/x509"

	"go.uber.org/zap"
)

// Verifier is the Verification Driver of spec.md Section 4.5: installed
// as the TLS stack's certificate-verify callback, it orchestrates the
// DANE-EE fast path, DANE-TA synthesis, and delegation to the underlying
// chain builder with the Chain Post-Hook running at completion.
type Verifier struct {
	store    *Store
	builder  chainBuilder
	log      *zap.Logger
	rootsFor func() *x509.CertPool
}

// NewVerifier returns a Verifier bound to store. store must not be
// reused across connections (spec.md Section 5).
func NewVerifier(store *Store) *Verifier {
	return &Verifier{store: store, builder: x509ChainBuilder{}, log: zap.NewNop()}
}

// WithLogger attaches a structured logger the Verifier uses for
// diagnostic tracing of each verification step. Nil restores the no-op
// logger.
func (v *Verifier) WithLogger(l *zap.Logger) *Verifier {
	if l == nil {
		l = zap.NewNop()
	}
	v.log = l
	return v
}

// ConfigureTLS installs the Verifier on cfg as its VerifyPeerCertificate
// callback and disables the stock verification crypto/tls would
// otherwise perform, since the Verifier subsumes it (spec.md Section
// 4.5 step 4 runs the underlying chain builder itself, via
// chainBuilder). cfg.ServerName is set from the Store's configured SNI,
// if any. This is the analogue of ctx_init installing the verification
// driver on a TLS context.
func (v *Verifier) ConfigureTLS(cfg *tls.Config) {
	if v.store.sni != "" {
		cfg.ServerName = v.store.sni
	}
	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = v.VerifyPeerCertificate
	v.rootsFor = func() *x509.CertPool { return cfg.RootCAs }
}

// rootsFor supplies the PKIX root pool used for usage-0/1 validation and
// the non-DANE fallback path; it defaults to nil (system roots) and is
// overridden by ConfigureTLS to track whatever RootCAs the caller has
// configured.
func (v *Verifier) pkixRoots() *x509.CertPool {
	if v.rootsFor == nil {
		return nil
	}
	return v.rootsFor()
}

// VerifyPeerCertificate implements the Verification Driver algorithm of
// spec.md Section 4.5. It has the exact signature
// tls.Config.VerifyPeerCertificate expects, so it can also be installed
// directly by callers who want finer control than ConfigureTLS gives
// them.
func (v *Verifier) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	store := v.store

	certs := make([]*x509.Certificate, len(rawCerts))
	for i, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return newErr(KindBadCert, err, "depth", i)
		}
		certs[i] = cert
	}
	if len(certs) == 0 {
		return newErr(KindBadCert, nil, "reason", "empty peer certificate chain")
	}
	leaf := certs[0]
	untrusted := certs[1:]

	// Step 1: no DANE records at all means the caller never wanted DANE
	// for this connection; delegate to ordinary PKIX validation.
	if !store.hasUsage(PkixTA) && !store.hasUsage(PkixEE) &&
		!store.hasUsage(DaneTA) && !store.hasUsage(DaneEE) {
		return v.pkixOnly(leaf, untrusted)
	}

	// Step 2: DANE-EE fast path. A hit bypasses PKIX entirely.
	if store.hasUsage(DaneEE) {
		kind := match(store.allOfUsage(DaneEE), leaf, 0)
		switch kind {
		case matchErr:
			return newErr(KindBadCert, nil, "reason", "malformed DANE-EE record")
		case matchCert, matchKey:
			v.log.Debug("dane-ee fast path matched", zap.String("kind", kind.String()))
			return nil
		}
	}

	// Step 3: DANE-TA synthesis, if any usage-2 records exist.
	if store.hasUsage(DaneTA) {
		if err := synthesizeTrustAnchors(store, leaf, untrusted); err != nil {
			v.log.Debug("dane-ta synthesis failed", zap.Error(err))
			return err
		}
	}

	// Step 4: delegate to the chain builder, then run the Chain
	// Post-Hook.
	roots := v.pkixRoots()
	intermediates := x509.NewCertPool()
	okdane := len(store.synthesizedRoots) > 0
	if okdane {
		roots = x509.NewCertPool()
		for _, r := range store.synthesizedRoots {
			roots.AddCert(r)
		}
		for _, c := range store.workingChain {
			intermediates.AddCert(c)
		}
	} else {
		for _, c := range untrusted {
			intermediates.AddCert(c)
		}
	}

	chains, buildErr := v.builder.Verify(leaf, roots, intermediates)
	var built []*x509.Certificate
	if buildErr == nil && len(chains) > 0 {
		built = chains[0]
	} else {
		built = append([]*x509.Certificate{leaf}, untrusted...)
	}

	return postHook(store, built, buildErr == nil)
}

// pkixOnly performs plain PKIX validation plus a hostname check against
// the Store's reference identities, used when the Store carries no TLSA
// records at all.
func (v *Verifier) pkixOnly(leaf *x509.Certificate, untrusted []*x509.Certificate) error {
	intermediates := x509.NewCertPool()
	for _, c := range untrusted {
		intermediates.AddCert(c)
	}
	_, err := v.builder.Verify(leaf, v.pkixRoots(), intermediates)
	if err != nil {
		return err
	}
	matched, ok, _ := checkName(v.store, leaf)
	if !ok {
		return newErr(KindDaneInit, nil, "reason", "hostname mismatch")
	}
	v.store.matchedHost = matched
	return nil
}
