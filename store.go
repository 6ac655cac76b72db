package dane

import (
	"crypto"
	"crypto/x509"
)

// bareCert is a usage-2, selector=cert, matching-type-absent TLSA record:
// a full certificate carried directly in the TLSA data, retained parsed
// so the Trust-Anchor Synthesizer can use it without re-parsing.
type bareCert struct {
	record TLSARecord
	cert   *x509.Certificate
}

// bareKey is a usage-2, selector=spki, matching-type-absent TLSA record:
// a bare SubjectPublicKeyInfo, retained parsed.
type bareKey struct {
	record TLSARecord
	key    crypto.PublicKey
}

// usageGroup holds every TLSA record sharing one usage value, organized
// by selector then matching type then data for O(1) duplicate detection
// and efficient per-selector iteration by the Matcher.
type usageGroup struct {
	bySelector [2]map[string]struct{} // selector -> dedupKey set
	records    [2][]TLSARecord        // selector -> ordered records
}

func newUsageGroup() *usageGroup {
	return &usageGroup{
		bySelector: [2]map[string]struct{}{
			make(map[string]struct{}),
			make(map[string]struct{}),
		},
	}
}

func (g *usageGroup) add(r TLSARecord) (added bool) {
	key := r.dedupKey()
	if _, dup := g.bySelector[r.Selector][key]; dup {
		return false
	}
	g.bySelector[r.Selector][key] = struct{}{}
	g.records[r.Selector] = append(g.records[r.Selector], r)
	return true
}

// Store is the per-connection collection of TLSA records and reference
// identities described in spec.md Section 3. It must not be shared
// across connections: a fresh Store is created for every TLS handshake
// a caller wants to authenticate with DANE.
type Store struct {
	usage [4]*usageGroup

	bareCerts []bareCert
	bareKeys  []bareKey

	refIdentities       []refIdentity
	multiLabelWildcard  bool
	baseDomain          string
	sni                 string

	// Populated during verification.
	matchedHost      string
	synthesizedRoots []*x509.Certificate
	workingChain     []*x509.Certificate
	firstTADepth     int
}

// NewStore allocates an empty TLSA Store, the analogue of dane_init
// minus the TLS-handle attachment (callers attach it themselves, e.g. by
// embedding a *Store in their own connection-state type).
func NewStore() *Store {
	s := &Store{firstTADepth: -1}
	for u := range s.usage {
		s.usage[u] = newUsageGroup()
	}
	return s
}

// SetSNI records the TLS Server Name Indication to present for this
// connection. It does not itself configure a tls.Config; callers combine
// it with (*Verifier).ConfigureTLS.
func (s *Store) SetSNI(name string) {
	s.sni = name
}

// SNI returns the configured Server Name Indication, if any.
func (s *Store) SNI() string {
	return s.sni
}

// AddReferenceIdentity appends a reference identity the Name Checker
// will match leaf certificate names against. The first identity ever
// added becomes the Store's base domain, conventionally the TLSA owner
// domain the records were published under.
func (s *Store) AddReferenceIdentity(name string) {
	if len(s.refIdentities) == 0 {
		s.baseDomain = name
	}
	s.refIdentities = append(s.refIdentities, newRefIdentity(name))
}

// BaseDomain returns the TLSA base domain: the first reference identity
// added, by convention.
func (s *Store) BaseDomain() string {
	return s.baseDomain
}

// SetMultiLabelWildcard controls whether the Name Checker allows a
// leading wildcard label to stand in for more than one reference-name
// label (aligning on the trailing suffix) instead of only the reference
// identity's single leftmost label, per spec.md Section 4.3.
func (s *Store) SetMultiLabelWildcard(enabled bool) {
	s.multiLabelWildcard = enabled
}

// MatchedHost returns the certificate name the Name Checker matched on
// the most recent successful verification, or "" if none has occurred.
func (s *Store) MatchedHost() string {
	return s.matchedHost
}

// Close releases the Store. Go's garbage collector reclaims every
// certificate and key the Store owns once it becomes unreachable; Close
// exists for API symmetry with callers used to an explicit cleanup call
// (add_tlsa/cleanup in spec.md Section 6) and as a home for any future
// non-GC-managed resource (e.g. a pooled HSM signing handle).
func (s *Store) Close() {}

// AddNamed is the add_tlsa(tls_handle, usage, selector,
// digest_name_or_empty, data, data_len) entry point of spec.md Section
// 6: digest names the matching-type algorithm ("", "sha256", or
// "sha512") rather than its numeric code.
func (s *Store) AddNamed(usage, selector uint8, digest string, data []byte) error {
	matchType, ok := digestByName(digest)
	if !ok {
		return newErr(KindBadDigest, nil, "digest", digest)
	}
	return s.Add(usage, selector, matchType, data)
}

// Add validates and inserts one TLSA record, the analogue of add_tlsa in
// spec.md Section 4.1 / Section 6. A duplicate (usage, selector,
// matchType, data) tuple is silently accepted and returns nil, per the
// dedup invariant in spec.md Section 3.
func (s *Store) Add(usage, selector, matchType uint8, data []byte) error {
	if usage > 3 {
		return newErr(KindBadUsage, nil, "usage", usage)
	}
	if selector > 1 {
		return newErr(KindBadSelector, nil, "selector", selector)
	}
	wantLen, known := digestLen(matchType)
	if !known {
		return newErr(KindBadDigest, nil, "matchType", matchType)
	}
	if data == nil {
		return newErr(KindBadNullData, nil, "usage", usage, "selector", selector)
	}
	if matchType != MatchFull && len(data) != wantLen {
		return newErr(KindBadDataLength, nil,
			"matchType", matchType, "want", wantLen, "got", len(data))
	}

	rec := TLSARecord{Usage: usage, Selector: selector, MatchType: matchType, Data: data}

	// Usage-2 records with no matching type additionally carry a parsed
	// certificate or public key, used by the Trust-Anchor Synthesizer.
	if usage == DaneTA && matchType == MatchFull {
		switch selector {
		case SelectorCert:
			cert, err := x509.ParseCertificate(data)
			if err != nil {
				return newErr(KindBadCert, err)
			}
			if !s.usage[usage].add(rec) {
				return nil
			}
			s.bareCerts = append(s.bareCerts, bareCert{record: rec, cert: cert})
			return nil
		case SelectorSPKI:
			key, err := x509.ParsePKIXPublicKey(data)
			if err != nil {
				return newErr(KindBadPKey, err)
			}
			if !s.usage[usage].add(rec) {
				return nil
			}
			s.bareKeys = append(s.bareKeys, bareKey{record: rec, key: key})
			return nil
		}
	}

	s.usage[usage].add(rec)
	return nil
}

// records returns the ordered record list for one (usage, selector) pair.
func (s *Store) records(usage, selector uint8) []TLSARecord {
	return s.usage[usage].records[selector]
}

// hasUsage reports whether any record of the given usage was added.
func (s *Store) hasUsage(usage uint8) bool {
	g := s.usage[usage]
	return len(g.records[0]) > 0 || len(g.records[1]) > 0
}

// allOfUsage returns every record of a given usage across both selectors,
// in insertion order within each selector (selector 0 before selector 1),
// for callers (the Matcher) that iterate selectors themselves.
func (s *Store) allOfUsage(usage uint8) []TLSARecord {
	g := s.usage[usage]
	out := make([]TLSARecord, 0, len(g.records[0])+len(g.records[1]))
	out = append(out, g.records[0]...)
	out = append(out, g.records[1]...)
	return out
}
