// SPDX-License-Identifier: GPL-3.0-or-later

package sockcore

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"time"
)

// CertificateInfo is the metadata extracted from a peer certificate once a
// [TLSHook]'s handshake completes.
//
// Fields mirror the attributes the reference TLS hook stashes after
// verification: subject and issuer distinguished names, fingerprints in
// both the historical wire-compatible form and a modern one, the validity
// window, and three booleans describing trust outcome. The hook's verifier
// is permissive (self-signed and otherwise "invalid" peers are accepted);
// rejection policy belongs to the consumer, which inspects these fields.
type CertificateInfo struct {
	// Subject is the certificate subject's distinguished name.
	Subject string

	// Issuer is the certificate issuer's distinguished name.
	Issuer string

	// MD5Fingerprint is the hex-encoded MD5 digest of the DER certificate,
	// kept for wire compatibility with consumers expecting the historical
	// fingerprint format.
	MD5Fingerprint string

	// SHA256Fingerprint is the hex-encoded SHA-256 digest of the DER
	// certificate.
	SHA256Fingerprint string

	// NotBefore and NotAfter bound the certificate's validity window.
	NotBefore time.Time
	NotAfter  time.Time

	// Invalid is true if standard X.509 chain verification failed.
	Invalid bool

	// Trusted is true iff the leaf certificate is self-signed (depth zero).
	// It is derived from the self-signed flag alone; the chain verification
	// outcome is reported by Invalid.
	Trusted bool

	// UnknownSigner is true iff the leaf certificate is not self-signed,
	// whatever the outcome of chain verification.
	UnknownSigner bool

	// SelfSigned is true when the leaf certificate is its own issuer.
	SelfSigned bool
}

// Expired reports whether the certificate's validity window does not
// contain now.
func (c CertificateInfo) Expired(now time.Time) bool {
	return now.Before(c.NotBefore) || now.After(c.NotAfter)
}

// extractCertificateInfo builds a [CertificateInfo] from the verified
// connection state of a completed TLS handshake.
//
// verifyErr is the error (if any) standard library chain verification
// produced when the session's [tls.Config] disabled its own verification
// (as [TLSHook] does, to stay permissive per spec) and verification was run
// manually; a nil verifyErr means the chain validated against the
// configured roots.
func extractCertificateInfo(state tls.ConnectionState, verifyErr error) (CertificateInfo, bool) {
	if len(state.PeerCertificates) == 0 {
		return CertificateInfo{}, false
	}
	leaf := state.PeerCertificates[0]

	selfSigned := isSelfSigned(leaf)
	info := CertificateInfo{
		Subject:           leaf.Subject.String(),
		Issuer:            leaf.Issuer.String(),
		MD5Fingerprint:    hex.EncodeToString(md5Sum(leaf.Raw)),
		SHA256Fingerprint: hex.EncodeToString(sha256Sum(leaf.Raw)),
		NotBefore:         leaf.NotBefore,
		NotAfter:          leaf.NotAfter,
		Invalid:           verifyErr != nil,
		SelfSigned:        selfSigned,
	}

	if selfSigned {
		info.UnknownSigner = false
		info.Trusted = true
	} else {
		info.UnknownSigner = true
		info.Trusted = false
	}

	return info, true
}

func isSelfSigned(cert *x509.Certificate) bool {
	if cert.Subject.String() != cert.Issuer.String() {
		return false
	}
	return cert.CheckSignatureFrom(cert) == nil
}

func md5Sum(b []byte) []byte {
	sum := md5.Sum(b)
	return sum[:]
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
