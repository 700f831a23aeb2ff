package transport

import (
	"os"

	"crypto/tls"
	"crypto/x509"

	"github.com/pkg/errors"
)

// Functions

// NewClientTLSConfig returns a TLS config for connecting out to an
// IMAP server. It verifies against the system pool, optionally
// extended by a root certificate in PEM format, and pins strict
// defaults. Certificate verification is not performed by the
// handshake itself: the TCP transport collects verification errors
// and reports them, so a session can decide whether to accept or
// tear down.
func NewClientTLSConfig(serverName string, rootCertPath string) (*tls.Config, error) {

	config := &tls.Config{
		ServerName:       serverName,
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP384, tls.CurveP256},
	}

	// Start from the system certificate pool.
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	config.RootCAs = pool

	if rootCertPath != "" {

		// Read in the extra root certificate supplied via config.
		rootCert, err := os.ReadFile(rootCertPath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read root certificate")
		}

		if ok := config.RootCAs.AppendCertsFromPEM(rootCert); !ok {
			return nil, errors.Errorf("failed to append root certificate from '%s' to pool", rootCertPath)
		}
	}

	return config, nil
}
