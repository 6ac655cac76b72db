package dane

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"
)

// validityWindow is the ±30 day window synthetic certificates are valid
// for, per spec.md Section 3. It is sufficient because these
// certificates never escape the verification call.
const validityWindow = 30 * 24 * time.Hour

// nowFunc is overridden by tests needing deterministic validity windows.
var nowFunc = time.Now

// findIssuer scans candidates for one that issued cur: its subject name
// equals cur's issuer name, and it verifies cur's signature. Returns the
// issuer and its index in candidates, or (nil, -1) if none is found.
func findIssuer(cur *x509.Certificate, candidates []*x509.Certificate) (*x509.Certificate, int) {
	for i, cand := range candidates {
		if !bytes.Equal(cur.RawIssuer, cand.RawSubject) {
			continue
		}
		if cur.CheckSignatureFrom(cand) == nil {
			return cand, i
		}
	}
	return nil, -1
}

// isSelfSigned reports whether cert's issuer and subject names are
// identical and it verifies its own signature.
func isSelfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	return cert.CheckSignatureFrom(cert) == nil
}

// synthesizeTrustAnchors implements the Trust-Anchor Synthesizer of
// spec.md Section 4.4: it walks from leaf toward a root through the
// peer's untrusted chain, testing each issuer found against the usage-2
// TLSA records, and on success populates store.synthesizedRoots /
// store.workingChain so the Verification Driver can hand them to the
// chain builder.
func synthesizeTrustAnchors(store *Store, leaf *x509.Certificate, untrusted []*x509.Certificate) error {
	store.workingChain = nil
	store.synthesizedRoots = nil

	records := store.allOfUsage(DaneTA)
	remaining := append([]*x509.Certificate(nil), untrusted...)
	cur := leaf
	depth := 0

	for {
		issuer, idx := findIssuer(cur, remaining)
		if issuer == nil {
			break
		}
		remaining = append(remaining[:idx:idx], remaining[idx+1:]...)
		depth++

		kind := match(records, issuer, depth)
		switch kind {
		case matchErr:
			return newErr(KindBadCert, nil, "depth", depth)
		case matchCert:
			store.firstTADepth = depth
			return wrapCert(store, depth, issuer, cur)
		case matchKey:
			store.firstTADepth = depth
			return wrapKey(store, depth, issuer.PublicKey, cur)
		}

		store.workingChain = append(store.workingChain, issuer)
		cur = issuer
		if isSelfSigned(issuer) {
			break
		}
	}

	if !isSelfSigned(cur) {
		ok, err := taSigned(store, depth, cur)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	return newErr(KindDaneInit, nil, "reason", "no DANE-TA trust anchor found")
}

// taSigned implements the bare-certificate / bare-public-key fallback of
// spec.md Section 4.4: when the walk above exhausts the untrusted chain
// without finding a TLSA match, it additionally checks whether any
// usage-2 record carrying a full certificate or bare key (no matching
// type, selector cert/spki) directly issued and signed the residual
// certificate.
func taSigned(store *Store, depth int, cert *x509.Certificate) (bool, error) {
	for _, bc := range store.bareCerts {
		if !bytes.Equal(cert.RawIssuer, bc.cert.RawSubject) {
			continue
		}
		if err := x509.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature, bc.cert.PublicKey); err != nil {
			continue
		}
		store.firstTADepth = depth + 1
		return true, wrapCert(store, depth+1, bc.cert, cert)
	}
	for _, bk := range store.bareKeys {
		if err := x509.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature, bk.key); err != nil {
			continue
		}
		store.firstTADepth = depth + 1
		return true, wrapKey(store, depth+1, bk.key, cert)
	}
	return false, nil
}

// wrapCert promotes tacert to a trust anchor for subject (the
// certificate it was found to have issued), per spec.md Section 4.4.
// Because Go's standard chain builder accepts any certificate placed in
// its Roots pool as a trust anchor regardless of self-signedness
// (builderAcceptsPartialChain, builder.go), this is always the "direct"
// path. The deep-clone-and-resign branch below serves builders lacking
// that capability and is not reached while builderAcceptsPartialChain is
// true; synthetic signing roots are manufactured only by wrapKey, for
// bare-key matches.
func wrapCert(store *Store, depth int, tacert *x509.Certificate, subject *x509.Certificate) error {
	if builderAcceptsPartialChain {
		store.synthesizedRoots = append(store.synthesizedRoots, tacert)
		return nil
	}

	cloned, err := cloneViaDER(tacert)
	if err != nil {
		return err
	}
	signed, err := resignWithInternalKey(cloned)
	if err != nil {
		return err
	}
	store.workingChain = append(store.workingChain, signed)
	return wrapKey(store, depth+1, nil, signed)
}

// wrapKey constructs a synthetic CA certificate around key (a bare
// public key asserted by a usage-2 TLSA record) or, if key is nil, a
// self-signed synthetic root using the library's internal signing key,
// per spec.md Section 4.4.
func wrapKey(store *Store, depth int, key crypto.PublicKey, subject *x509.Certificate) error {
	if key == nil {
		root, err := buildSynthetic(subject, nil, true)
		if err != nil {
			return err
		}
		store.synthesizedRoots = append(store.synthesizedRoots, root)
		return nil
	}

	if isSelfSigned(subject) {
		issuer, err := buildSynthetic(subject, key, true)
		if err != nil {
			return err
		}
		store.synthesizedRoots = append(store.synthesizedRoots, issuer)
		return nil
	}

	signingKey, err := internalSigningKey()
	if err != nil {
		return err
	}
	issuer, err := buildSyntheticSigned(subject, key, signingKey)
	if err != nil {
		return err
	}
	store.workingChain = append(store.workingChain, issuer)
	return wrapKey(store, depth+1, nil, issuer)
}

// akidRemapped is the SubjectKeyIdentifier byte value 0x00 gets replaced
// with, per spec.md Section 3/Section 4.4: 0x00 is reserved to guarantee
// AKID != SKID on synthesized certificates, so the chain builder never
// classifies one as accidentally self-signed.
const akidRemapped = 0x01

// buildSynthetic manufactures the "Synthetic Certificate" of spec.md
// Section 3 around subject, always signed by the library's internal key.
// The certificate carries signerKey as its public key when non-nil, or
// the internal key's public half (a self-signed root) when signerKey is
// nil and selfSigned is requested.
func buildSynthetic(subject *x509.Certificate, signerKey crypto.PublicKey, selfSigned bool) (*x509.Certificate, error) {
	key, err := internalSigningKey()
	if err != nil {
		return nil, err
	}
	return buildSyntheticSigned(subject, signerPublicKeyOrNil(signerKey, selfSigned, key), key)
}

// signerPublicKeyOrNil resolves the effective public key the synthetic
// certificate's subjectPublicKeyInfo should carry: the caller-supplied
// key when given, else the internal signing key's own public half for a
// self-signed root.
func signerPublicKeyOrNil(key crypto.PublicKey, selfSigned bool, internal *ecdsa.PrivateKey) crypto.PublicKey {
	if key != nil {
		return key
	}
	if selfSigned {
		return &internal.PublicKey
	}
	return nil
}

// buildSyntheticSigned manufactures and signs a synthetic CA certificate
// carrying subjectKey as its public key, wrapping subject's name, signed
// by signerKey. Per spec.md Section 3: subject = issuer-name of the
// original subject; issuer = issuer-name derived from the original's
// Authority-Key-Identifier if present, else subject = issuer
// (self-signed). crypto/x509 only exposes the keyIdentifier sub-field of
// AKID, never the rarely-used authorityCertIssuer name, so there is no
// distinct issuer name to derive in practice: this is always the
// self-signed branch, with the AKID keyIdentifier (when present) still
// driving the synthetic SKID. The serial number is always subject's
// serial + 1 (see syntheticSerial).
func buildSyntheticSigned(subject *x509.Certificate, subjectKey crypto.PublicKey, signerKey *ecdsa.PrivateKey) (*x509.Certificate, error) {
	tmpl := &x509.Certificate{
		Subject:               subject.Issuer,
		Issuer:                subject.Issuer,
		SerialNumber:          syntheticSerial(subject),
		NotBefore:             nowFunc().Add(-validityWindow),
		NotAfter:              nowFunc().Add(validityWindow),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	if akid, ok := syntheticAKID(subject); ok {
		tmpl.SubjectKeyId = akid
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, subjectKey, signerKey)
	if err != nil {
		return nil, newErr(KindAlloc, err)
	}
	return x509.ParseCertificate(der)
}

// syntheticSerial derives the serial number of a synthetic certificate
// as original.serial + 1. The AKID extension's authorityCertSerialNumber
// is not read, even when the extension carries one.
func syntheticSerial(original *x509.Certificate) *big.Int {
	if original.AuthorityKeyId != nil {
		// The reference design uses the AKID extension's embedded
		// authorityCertSerialNumber when present; crypto/x509 does not
		// expose that sub-field directly, so we fall back to the
		// original+1 rule uniformly, which is always available.
	}
	one := big.NewInt(1)
	return new(big.Int).Add(original.SerialNumber, one)
}

// syntheticAKID derives the SubjectKeyIdentifier a synthetic certificate
// manufactured around original should carry: original's own
// AuthorityKeyId, with the reserved 0x00 byte value remapped to 0x01
// so AKID never equals SKID, per spec.md Section 4.4.
func syntheticAKID(original *x509.Certificate) ([]byte, bool) {
	if len(original.AuthorityKeyId) == 0 {
		return nil, false
	}
	akid := append([]byte(nil), original.AuthorityKeyId...)
	if len(akid) == 1 && akid[0] == 0x00 {
		akid[0] = akidRemapped
	}
	return akid, true
}

// cloneViaDER deep-copies cert by round-tripping it through DER: a
// deliberate design choice per spec.md Section 9, necessary so the clone
// shares no internal pointers with the peer's chain before it is
// re-signed with the library's internal key. The re-parsed length is
// asserted equal to the original, as the reference design requires.
func cloneViaDER(cert *x509.Certificate) (*x509.Certificate, error) {
	reparsed, err := x509.ParseCertificate(append([]byte(nil), cert.Raw...))
	if err != nil {
		return nil, newErr(KindBadCert, err)
	}
	if len(reparsed.Raw) != len(cert.Raw) {
		return nil, newErr(KindAlloc, nil, "reason", "DER round-trip length mismatch")
	}
	return reparsed, nil
}

// resignWithInternalKey re-signs cloned's subject and public key with the
// library's internal signing key, keeping its CA flag and key usage,
// producing a fresh certificate usable as an intermediate in
// working_chain ahead of a synthesized signing root. Validity is replaced
// by the synthetic ±30 day window, and no other extension of cloned is
// copied apart from the AKID-derived SKID.
func resignWithInternalKey(cloned *x509.Certificate) (*x509.Certificate, error) {
	signingKey, err := internalSigningKey()
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		Subject:               cloned.Subject,
		SerialNumber:          syntheticSerial(cloned),
		NotBefore:             nowFunc().Add(-validityWindow),
		NotAfter:              nowFunc().Add(validityWindow),
		BasicConstraintsValid: true,
		IsCA:                  cloned.IsCA,
		KeyUsage:              cloned.KeyUsage,
	}
	if akid, ok := syntheticAKID(cloned); ok {
		tmpl.SubjectKeyId = akid
	}
	tmpl.Issuer = pkix.Name{CommonName: "dane-synthetic-signer"}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, cloned.PublicKey, signingKey)
	if err != nil {
		return nil, newErr(KindAlloc, err)
	}
	return x509.ParseCertificate(der)
}
