package dane

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// certFixture bundles a generated certificate with its private key, the
// way the teacher's dane_test.go bundles PEM blobs with the roles they
// play in a chain (root/intermediate/leaf); here they're generated on
// the fly instead of hardcoded, since nothing in this suite may be
// pre-baked by running the Go toolchain.
type certFixture struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("genKey: %s", err)
	}
	return key
}

var serialCounter int64

func nextSerial() *big.Int {
	serialCounter++
	return big.NewInt(serialCounter)
}

// selfSignedCA builds a self-signed CA certificate with subject/issuer
// common name cn.
func selfSignedCA(t *testing.T, cn string) certFixture {
	t.Helper()
	key := genKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          nextSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		SubjectKeyId:          []byte(cn),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("selfSignedCA(%s): %s", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("selfSignedCA(%s): parse: %s", cn, err)
	}
	return certFixture{cert: cert, key: key}
}

// signedLeaf issues a non-CA end-entity certificate for dnsNames signed
// by parent, carrying an AuthorityKeyId copied from parent's
// SubjectKeyId so the Trust-Anchor Synthesizer's AKID-driven synthesis
// has something to chew on.
func signedLeaf(t *testing.T, cn string, dnsNames []string, parent certFixture) certFixture {
	t.Helper()
	key := genKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:    nextSerial(),
		Subject:         pkix.Name{CommonName: cn},
		DNSNames:        dnsNames,
		NotBefore:       time.Now().Add(-time.Hour),
		NotAfter:        time.Now().Add(time.Hour),
		KeyUsage:        x509.KeyUsageDigitalSignature,
		ExtKeyUsage:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		AuthorityKeyId:  parent.cert.SubjectKeyId,
		SubjectKeyId:    []byte(cn),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent.cert, &key.PublicKey, parent.key)
	if err != nil {
		t.Fatalf("signedLeaf(%s): %s", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("signedLeaf(%s): parse: %s", cn, err)
	}
	return certFixture{cert: cert, key: key}
}

// signedIntermediate issues a CA certificate signed by parent, for
// building three-link chains.
func signedIntermediate(t *testing.T, cn string, parent certFixture) certFixture {
	t.Helper()
	key := genKey(t)
	tmpl := &x509.Certificate{
		SerialNumber:          nextSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		AuthorityKeyId:        parent.cert.SubjectKeyId,
		SubjectKeyId:          []byte(cn),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent.cert, &key.PublicKey, parent.key)
	if err != nil {
		t.Fatalf("signedIntermediate(%s): %s", cn, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("signedIntermediate(%s): parse: %s", cn, err)
	}
	return certFixture{cert: cert, key: key}
}
