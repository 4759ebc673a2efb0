// Package security provides TLS configuration for outbound connections.
//
// Target endpoints using wss:// can carry per-endpoint TLS settings,
// including custom CAs and client certificates for mTLS.
//
// # TLS Configuration
//
//	cfg := security.TLSConfig{
//	    CAFile:   "/path/to/ca.pem",
//	    CertFile: "/path/to/cert.pem",
//	    KeyFile:  "/path/to/key.pem",
//	}
//
//	tlsConfig, err := cfg.Build()
package security
