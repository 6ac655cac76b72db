package dane

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTLSARR(t *testing.T) {
	rec, err := ParseTLSARR("_443._tcp.example.com. IN TLSA 3 1 1 d2abde240d7cd3ee6b4b28c54df034b9" +
		"7983a1d16e8a410e4561cb106618e971")
	require.NoError(t, err)
	require.Equal(t, uint8(3), rec.Usage)
	require.Equal(t, uint8(1), rec.Selector)
	require.Equal(t, uint8(1), rec.MatchType)
	require.Len(t, rec.Data, 32)
}

func TestParseTLSARRRejectsNonTLSA(t *testing.T) {
	_, err := ParseTLSARR("example.com. IN A 127.0.0.1")
	require.Error(t, err)
}

func TestParseTLSARRRejectsGarbage(t *testing.T) {
	_, err := ParseTLSARR("not a zone line at all")
	require.Error(t, err)
}
