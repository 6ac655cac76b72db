package dane

import "crypto/x509"

// postHook implements the Chain Post-Hook of spec.md Section 4.6: once
// the underlying chain builder has produced (or failed to produce) a
// candidate chain, it enforces usage-0 (PKIX-TA) and usage-1 (PKIX-EE)
// constraints against it, then runs the Name Checker, finally reporting
// success only if every configured constraint was satisfied.
func postHook(store *Store, built []*x509.Certificate, okpkix bool) error {
	if len(built) == 0 {
		return newErr(KindBadCert, nil, "reason", "empty chain presented to post-hook")
	}
	leaf := built[0]

	usage0 := store.hasUsage(PkixTA)
	usage1 := store.hasUsage(PkixEE)

	if usage0 || usage1 {
		if !okpkix {
			return newErr(KindDaneInit, nil,
				"reason", "certificate untrusted", "depth", len(built)-1)
		}

		matched := false
		if usage0 {
			records := store.allOfUsage(PkixTA)
			for depth := len(built) - 1; depth >= 1; depth-- {
				if match(records, built[depth], depth) != matchNone {
					matched = true
					break
				}
			}
		}
		if !matched && usage1 {
			if match(store.allOfUsage(PkixEE), leaf, 0) != matchNone {
				matched = true
			}
		}
		if !matched {
			return newErr(KindDaneInit, nil,
				"reason", "certificate untrusted", "depth", len(built)-1)
		}
	} else if !okpkix {
		// No usage-0/1 constraints configured: the build ran against the
		// synthesized DANE-TA roots, or against the PKIX roots when only
		// non-matching DANE-EE records exist. A failed build here means
		// the leaf does not chain to those roots.
		return newErr(KindDaneInit, nil, "reason", "certificate untrusted")
	}

	matched, ok, err := checkName(store, leaf)
	if err != nil {
		return err
	}
	if !ok {
		return newErr(KindDaneInit, nil, "reason", "hostname mismatch", "depth", 0)
	}
	store.matchedHost = matched
	return nil
}
