// Command danetls is the minimal out-of-core test harness spec.md
// Section 6 describes for the DANE verification engine: it builds a
// single TLSA record from a certificate file, connects to a server, and
// reports whether the presented certificate authenticates under that
// record.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/foxcpp/dane"
)

// wellKnownPorts maps the "service" argument to a TCP port, mirroring
// the handful of services the reference CLI demo supports.
var wellKnownPorts = map[string]int{
	"https":       443,
	"smtp":        25,
	"imap":        143,
	"pop3":        110,
	"xmpp-client": 5222,
	"xmpp-server": 5269,
}

func main() {
	app := &cli.App{
		Name:      "danetls",
		Usage:     "verify a TLS server certificate against a single DANE TLSA association",
		ArgsUsage: "<usage> <selector> <mtype> <certfile> <cafile> <service> <hostname> [extra-names...]",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "danetls:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	args := c.Args().Slice()
	if len(args) < 7 {
		return cli.Exit("expected at least 7 positional arguments, see --help", 1)
	}

	usage, err := parseUint8(args[0])
	if err != nil {
		return cli.Exit(fmt.Sprintf("usage: %s", err), 1)
	}
	selector, err := parseUint8(args[1])
	if err != nil {
		return cli.Exit(fmt.Sprintf("selector: %s", err), 1)
	}
	mtype, err := parseUint8(args[2])
	if err != nil {
		return cli.Exit(fmt.Sprintf("mtype: %s", err), 1)
	}
	certfile, cafile, service, hostname := args[3], args[4], args[5], args[6]
	extraNames := args[7:]

	cert, err := loadCertPEM(certfile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading certfile: %s", err), 1)
	}

	data, err := dane.ComputeTLSA(selector, mtype, cert)
	if err != nil {
		return cli.Exit(fmt.Sprintf("computing TLSA data: %s", err), 1)
	}

	if _, err := dane.LibraryInit(); err != nil {
		return cli.Exit(fmt.Sprintf("library init: %s", err), 1)
	}

	store := dane.NewStore()
	store.SetSNI(hostname)
	store.AddReferenceIdentity(hostname)
	for _, n := range extraNames {
		store.AddReferenceIdentity(n)
	}
	if err := store.Add(usage, selector, mtype, data); err != nil {
		return cli.Exit(fmt.Sprintf("add_tlsa: %s", err), 1)
	}

	port, err := resolvePort(service)
	if err != nil {
		return cli.Exit(fmt.Sprintf("service: %s", err), 1)
	}

	tlsCfg := &tls.Config{}
	if cafile != "" {
		roots, err := loadCAFile(cafile)
		if err != nil {
			return cli.Exit(fmt.Sprintf("loading cafile: %s", err), 1)
		}
		tlsCfg.RootCAs = roots
	}

	verifier := dane.NewVerifier(store).WithLogger(logger)
	verifier.ConfigureTLS(tlsCfg)

	addr := net.JoinHostPort(hostname, strconv.Itoa(port))
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		logger.Error("DANE verification failed", zap.String("addr", addr), zap.Error(err))
		return cli.Exit("verification failed", 1)
	}
	defer conn.Close()

	logger.Info("DANE verification succeeded",
		zap.String("addr", addr),
		zap.String("matched_host", store.MatchedHost()))
	fmt.Printf("OK: %s authenticated (matched %q)\n", addr, store.MatchedHost())
	return nil
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func resolvePort(service string) (int, error) {
	if p, ok := wellKnownPorts[service]; ok {
		return p, nil
	}
	return strconv.Atoi(service)
}

func loadCertPEM(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}
	return x509.ParseCertificate(block.Bytes)
}

func loadCAFile(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("%s: no certificates found", path)
	}
	return pool, nil
}
