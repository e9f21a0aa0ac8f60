package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/vadiminshakov/autotrader/internal/domain"
)

const (
	headerAccessKey        = "OK-ACCESS-KEY"
	headerAccessSign       = "OK-ACCESS-SIGN"
	headerAccessTimestamp  = "OK-ACCESS-TIMESTAMP"
	headerAccessPassphrase = "OK-ACCESS-PASSPHRASE"

	okxTimestampLayout = "2006-01-02T15:04:05.000Z"
)

// OKXSigner builds the authentication headers of OKX REST requests.
type OKXSigner struct {
	cred   domain.Credential
	now    func() time.Time
	offset time.Duration
}

// NewOKXSigner creates a signer. Incomplete credentials fail before any request is built.
func NewOKXSigner(cred domain.Credential) (*OKXSigner, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	return &OKXSigner{cred: cred, now: time.Now}, nil
}

// SetClock replaces the time source.
func (s *OKXSigner) SetClock(now func() time.Time) {
	s.now = now
}

// SetClockOffset shifts generated timestamps by the local-to-server difference.
func (s *OKXSigner) SetClockOffset(d time.Duration) {
	s.offset = d
}

// Timestamp returns the current request timestamp.
func (s *OKXSigner) Timestamp() string {
	return s.now().Add(s.offset).UTC().Format(okxTimestampLayout)
}

// Sign returns base64(HMAC-SHA256(secret, timestamp + METHOD + requestPath + body)).
// requestPath includes the query string, body is empty for GET.
func (s *OKXSigner) Sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(s.cred.APISecret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Headers returns the signed header set for one request.
func (s *OKXSigner) Headers(method, requestPath, body string) http.Header {
	ts := s.Timestamp()

	h := make(http.Header)
	h.Set(headerAccessKey, s.cred.APIKey)
	h.Set(headerAccessSign, s.Sign(ts, method, requestPath, body))
	h.Set(headerAccessTimestamp, ts)
	h.Set(headerAccessPassphrase, s.cred.Passphrase)
	return h
}
