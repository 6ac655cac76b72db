package dane

import "github.com/miekg/dns"

// ParseTLSARR parses one TLSA resource record in DNS presentation
// format (e.g. "_443._tcp.example.com. IN TLSA 3 1 1 d2abde240d7c...")
// into a TLSARecord. It is a thin adapter over miekg/dns's own RR
// parser, letting callers build TLSA records from zone-file text
// without hand-encoding hex strings, while keeping actual DNS
// resolution (a Non-goal, spec.md Section 1) entirely out of this
// package.
func ParseTLSARR(presentation string) (TLSARecord, error) {
	rr, err := dns.NewRR(presentation)
	if err != nil {
		return TLSARecord{}, newErr(KindBadNullData, err, "reason", "parsing TLSA presentation format")
	}
	tlsa, ok := rr.(*dns.TLSA)
	if !ok {
		return TLSARecord{}, newErr(KindBadUsage, nil, "reason", "record is not a TLSA RR")
	}
	data, err := hexDecode(tlsa.Certificate)
	if err != nil {
		return TLSARecord{}, newErr(KindBadDataLength, err)
	}
	return TLSARecord{
		Usage:     tlsa.Usage,
		Selector:  tlsa.Selector,
		MatchType: tlsa.MatchingType,
		Data:      data,
	}, nil
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errOddHex
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, errBadHex
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}

var (
	errOddHex = newErr(KindBadDataLength, nil, "reason", "odd-length hex string")
	errBadHex = newErr(KindBadDataLength, nil, "reason", "invalid hex digit")
)
