package main

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/spf13/cobra"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// sslFlags is the SSL option group shared by every command that opens a
// transport connection (spec §6 "SSL client/server option groups").
type sslFlags struct {
	cert     string
	key      string
	ca       string
	ciphers  string
	versions string
}

func (s *sslFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.cert, "ssl-cert", "", "TLS certificate file")
	cmd.Flags().StringVar(&s.key, "ssl-key", "", "TLS private key file")
	cmd.Flags().StringVar(&s.ca, "ssl-ca", "", "TLS CA bundle for peer verification")
	cmd.Flags().StringVar(&s.ciphers, "ssl-ciphers", "", "colon-separated TLS cipher suite names (accepted but not applied; Go's default cipher suites are used)")
	cmd.Flags().StringVar(&s.versions, "ssl-versions", "", "min:max TLS protocol versions, e.g. 1.2:1.3")
}

// enabled reports whether a certificate, key or CA bundle was supplied;
// --ssl-ciphers or --ssl-versions alone do not enable TLS.
func (s *sslFlags) enabled() bool {
	return s.cert != "" || s.key != "" || s.ca != ""
}

// serverConfig builds a *tls.Config for a listening broker (spec's SSL
// server option group): requires cert+key.
func (s *sslFlags) serverConfig() (*tls.Config, error) {
	if s.cert == "" || s.key == "" {
		return nil, rcerrors.New(rcerrors.KindConfig, "--ssl-cert and --ssl-key are both required to serve TLS")
	}
	pair, err := tls.LoadX509KeyPair(s.cert, s.key)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindConfig, err, "loading TLS keypair")
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{pair}}
	applyVersions(cfg, s.versions)
	if s.ca != "" {
		pool, err := loadCAPool(s.ca)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// clientConfig builds a *tls.Config for a dialing worker or client (spec's
// SSL client option group): cert+key are optional (mutual TLS), a CA
// bundle customizes server verification.
func (s *sslFlags) clientConfig() (*tls.Config, error) {
	cfg := &tls.Config{}
	applyVersions(cfg, s.versions)
	if s.cert != "" && s.key != "" {
		pair, err := tls.LoadX509KeyPair(s.cert, s.key)
		if err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindConfig, err, "loading TLS keypair")
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	if s.ca != "" {
		pool, err := loadCAPool(s.ca)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindConfig, err, "reading CA bundle %s", path)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, rcerrors.New(rcerrors.KindConfig, "no certificates parsed from %s", path)
	}
	return pool, nil
}

func applyVersions(cfg *tls.Config, spec string) {
	switch spec {
	case "1.2:1.3":
		cfg.MinVersion, cfg.MaxVersion = tls.VersionTLS12, tls.VersionTLS13
	case "1.3:1.3", "1.3":
		cfg.MinVersion, cfg.MaxVersion = tls.VersionTLS13, tls.VersionTLS13
	case "1.2:1.2", "1.2":
		cfg.MinVersion, cfg.MaxVersion = tls.VersionTLS12, tls.VersionTLS12
	}
}
