package dane

import (
	"crypto/x509"
	"encoding/asn1"
	"strings"
)

// isLDH reports whether b is a valid byte within a DNS-ID certid: a
// letter, digit, hyphen, the label separator '.', or the wildcard
// character '*'.
func isLDH(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '*':
		return true
	default:
		return false
	}
}

// sanitizeCertID validates and normalizes a raw name taken from a
// certificate's subjectAltName or commonName, per spec.md Section 4.3:
// every byte must be LDH/'.'/'*', trailing NULs are trimmed, and an
// embedded NUL rejects the name outright (a classic NUL-byte spoofing
// defense).
func sanitizeCertID(raw string) (string, bool) {
	raw = strings.TrimRight(raw, "\x00")
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0 {
			return "", false
		}
		if !isLDH(raw[i]) {
			return "", false
		}
	}
	if raw == "" {
		return "", false
	}
	return raw, true
}

// certIDs extracts the candidate DNS identities from a leaf certificate:
// every dNSName in subjectAltName, or, only when there are none, the
// commonName. This resolves spec.md Section 9's flagged Open Question by
// following RFC 6125: a SAN extension that is present but carries no DNS
// entries still suppresses the CN fallback.
func certIDs(cert *x509.Certificate) []string {
	if len(cert.DNSNames) > 0 {
		out := make([]string, 0, len(cert.DNSNames))
		for _, n := range cert.DNSNames {
			if id, ok := sanitizeCertID(n); ok {
				out = append(out, id)
			}
		}
		return out
	}
	if hasSANExtension(cert) {
		return nil
	}
	if cert.Subject.CommonName == "" {
		return nil
	}
	if id, ok := sanitizeCertID(cert.Subject.CommonName); ok {
		return []string{id}
	}
	return nil
}

// oidSubjectAltName is the X.509 extension OID for subjectAltName,
// 2.5.29.17.
var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

func hasSANExtension(cert *x509.Certificate) bool {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			return true
		}
	}
	return false
}

// matchesReference reports whether certid (already sanitized) satisfies
// reference identity ref, applying literal, wildcard, and sub-domain
// matching rules per spec.md Section 4.3.
func matchesReference(certid string, ref refIdentity, multiLabel bool) bool {
	certid = strings.ToLower(certid)
	name := strings.ToLower(ref.name)

	if ref.subDomain {
		// ref.name is ".example.com": certid must be a proper
		// sub-domain, i.e. "<label>.example.com" with at least one
		// more label present.
		if !strings.HasSuffix(certid, name) {
			return false
		}
		return len(certid) > len(name)
	}

	if certid == name {
		return true
	}

	if !strings.HasPrefix(certid, "*.") {
		return false
	}
	wildcardSuffix := certid[2:]

	if multiLabel {
		// The wildcard may span multiple labels: align on the
		// trailing suffix of the reference name rather than its
		// single leftmost label.
		return strings.HasSuffix(name, "."+wildcardSuffix)
	}

	// RFC 6125 leftmost-label wildcard: the reference must have at
	// least one '.', and everything after its leftmost label must
	// equal, case-insensitively, the certid's suffix after "*.".
	dot := strings.IndexByte(name, '.')
	if dot < 0 {
		return false
	}
	return name[dot+1:] == wildcardSuffix
}

// checkName applies the Name Checker of spec.md Section 4.3: it walks
// the Store's reference identities in insertion order and, for the
// first one any certid of cert satisfies, returns the matched host name
// (storing it in the Store is left to the caller). Returns ok=false (no error) if nothing matched, and
// a non-nil error only for malformed input the caller should treat as a
// hard failure rather than a plain mismatch.
func checkName(store *Store, cert *x509.Certificate) (matched string, ok bool, err error) {
	if len(store.refIdentities) == 0 {
		return "", false, nil
	}
	ids := certIDs(cert)
	for _, ref := range store.refIdentities {
		for _, certid := range ids {
			if matchesReference(certid, ref, store.multiLabelWildcard) {
				return certid, true, nil
			}
		}
	}
	return "", false, nil
}
