package executor

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"

	"github.com/arosnov/schedhook/internal/domain"
)

// classify maps a round-trip outcome to an error class. statusCode is
// 0 when the request never received a response (err != nil).
func classify(statusCode int, err error) domain.ErrorClass {
	if err == nil {
		switch {
		case statusCode >= 200 && statusCode < 400:
			return domain.ErrorNone
		case statusCode >= 400 && statusCode < 500:
			return domain.ErrorHTTP4xx
		case statusCode >= 500:
			return domain.ErrorHTTP5xx
		default:
			return domain.ErrorUnknown
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrorTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.ErrorDNS
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidCertErr x509.CertificateInvalidError
	var recordHeaderErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) ||
		errors.As(err, &hostnameErr) || errors.As(err, &invalidCertErr) ||
		errors.As(err, &recordHeaderErr) {
		return domain.ErrorSSL
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.ErrorConnection
	}

	return domain.ErrorUnknown
}

// statusCodeOf returns 0 for a response that never arrived.
func statusCodeOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
