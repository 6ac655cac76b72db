package dane

import "fmt"

// DANE certificate usage modes, RFC 6698 Section 2.1.1 / RFC 7671.
const (
	PkixTA = uint8(0) // CA constraint: require PKIX plus a matching trust anchor
	PkixEE = uint8(1) // Service certificate constraint: require PKIX plus a matching leaf
	DaneTA = uint8(2) // Trust anchor assertion: bypass PKIX roots
	DaneEE = uint8(3) // Domain issued certificate: bypass chain building entirely
)

// Selector values, RFC 6698 Section 2.1.2.
const (
	SelectorCert = uint8(0) // full certificate
	SelectorSPKI = uint8(1) // SubjectPublicKeyInfo
)

// Matching type values, RFC 6698 Section 2.1.3. MatchFull means the
// TLSA data holds the full selected content rather than a digest of it.
const (
	MatchFull   = uint8(0)
	MatchSHA256 = uint8(1)
	MatchSHA512 = uint8(2)
)

// digestLen reports the expected data length for a matching type, and
// whether the matching type is recognised at all.
func digestLen(mtype uint8) (length int, known bool) {
	switch mtype {
	case MatchFull:
		return 0, true
	case MatchSHA256:
		return 32, true
	case MatchSHA512:
		return 64, true
	default:
		return 0, false
	}
}

// digestByName resolves a named digest algorithm (as used by add_tlsa's
// digest_name_or_empty parameter) to its matching-type code. An empty
// name selects MatchFull.
func digestByName(name string) (mtype uint8, ok bool) {
	switch name {
	case "":
		return MatchFull, true
	case "sha256", "SHA-256", "SHA256":
		return MatchSHA256, true
	case "sha512", "SHA-512", "SHA512":
		return MatchSHA512, true
	default:
		return 0, false
	}
}

// TLSARecord is one immutable TLSA association, as specified by RFC
// 6698. Once added to a Store it is never mutated.
type TLSARecord struct {
	Usage     uint8
	Selector  uint8
	MatchType uint8
	Data      []byte
}

func (r TLSARecord) String() string {
	n := len(r.Data)
	if n > 4 {
		n = 4
	}
	return fmt.Sprintf("TLSA %d %d %d %x...", r.Usage, r.Selector, r.MatchType, r.Data[:n])
}

// dedupKey returns the string used to deduplicate records sharing a usage and
// selector: matchType and the raw data bytes uniquely identify a record
// within that group.
func (r TLSARecord) dedupKey() string {
	return string([]byte{r.MatchType}) + string(r.Data)
}

// refIdentity is one reference identity the Name Checker matches
// certificate names against. A name beginning with "." (and longer than
// just ".") denotes "any proper sub-domain of this name"; anything else
// is matched literally (possibly via wildcard expansion).
type refIdentity struct {
	name      string
	subDomain bool
}

func newRefIdentity(name string) refIdentity {
	if len(name) > 1 && name[0] == '.' {
		return refIdentity{name: name, subDomain: true}
	}
	return refIdentity{name: name, subDomain: false}
}
