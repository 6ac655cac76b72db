package dane

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
)

// matchKind is the result of matching a certificate against a set of
// TLSA records, per spec.md Section 4.2.
type matchKind int

const (
	matchNone matchKind = iota
	matchCert           // the record matched the full certificate encoding
	matchKey            // the record matched the SubjectPublicKeyInfo encoding
	matchErr
)

func (k matchKind) String() string {
	switch k {
	case matchCert:
		return "matched-cert"
	case matchKey:
		return "matched-pkey"
	case matchErr:
		return "error"
	default:
		return "no-match"
	}
}

// ComputeTLSA computes the TLSA association data a record with the given
// selector and matching type would need to carry to match cert. It is
// exported so callers building TLSA records from a certificate file (the
// CLI demo, test fixtures) encode data exactly the way the Matcher itself
// would, and can never drift out of sync with it.
func ComputeTLSA(selector, mtype uint8, cert *x509.Certificate) ([]byte, error) {
	var preimage []byte
	switch selector {
	case SelectorCert:
		preimage = cert.Raw
	case SelectorSPKI:
		preimage = cert.RawSubjectPublicKeyInfo
	default:
		return nil, newErr(KindBadSelector, nil, "selector", selector)
	}
	switch mtype {
	case MatchFull:
		return preimage, nil
	case MatchSHA256:
		sum := sha256.Sum256(preimage)
		return sum[:], nil
	case MatchSHA512:
		sum := sha512.Sum512(preimage)
		return sum[:], nil
	default:
		return nil, newErr(KindBadDigest, nil, "matchType", mtype)
	}
}

// match iterates the selectors and matching types of the records of one
// usage class against cert, encoding the candidate certificate once per
// selector and its digest once per matching type, as specified in
// spec.md Section 4.2. depth is carried through only for diagnostics.
func match(records []TLSARecord, cert *x509.Certificate, depth int) matchKind {
	// Group by selector so the (potentially expensive) DER/SPKI encoding
	// step happens at most once per selector, not once per record.
	var bySelector [2][]TLSARecord
	for _, r := range records {
		if r.Selector > 1 {
			return matchErr
		}
		bySelector[r.Selector] = append(bySelector[r.Selector], r)
	}

	for selector := uint8(0); selector < 2; selector++ {
		recs := bySelector[selector]
		if len(recs) == 0 {
			continue
		}
		var preimage []byte
		switch selector {
		case SelectorCert:
			preimage = cert.Raw
		case SelectorSPKI:
			preimage = cert.RawSubjectPublicKeyInfo
		}

		var sum256 *[32]byte
		var sum512 *[64]byte

		for _, r := range recs {
			var candidate []byte
			switch r.MatchType {
			case MatchFull:
				candidate = preimage
			case MatchSHA256:
				if sum256 == nil {
					s := sha256.Sum256(preimage)
					sum256 = &s
				}
				candidate = sum256[:]
			case MatchSHA512:
				if sum512 == nil {
					s := sha512.Sum512(preimage)
					sum512 = &s
				}
				candidate = sum512[:]
			default:
				return matchErr
			}
			if bytes.Equal(candidate, r.Data) {
				if selector == SelectorCert {
					return matchCert
				}
				return matchKey
			}
		}
	}
	return matchNone
}
