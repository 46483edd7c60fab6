package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// URLSigner mints and verifies expiring download links for stored reports.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewURLSigner(secret string, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &URLSigner{secret: []byte(secret), ttl: ttl}
}

// Sign produces a relative download URL for the given job ID, valid until expiry.
func (s *URLSigner) Sign(basePath, jobID string) string {
	expires := time.Now().Add(s.ttl).Unix()
	sig := s.signature(jobID, expires)
	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("signature", sig)
	return fmt.Sprintf("%s/%s/download?%s", basePath, jobID, query.Encode())
}

// Verify checks a signature against the job ID and expiry timestamp.
func (s *URLSigner) Verify(jobID, expiresRaw, signature string) error {
	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expiry: %w", err)
	}
	if time.Now().Unix() > expires {
		return fmt.Errorf("download link expired")
	}
	expected := s.signature(jobID, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func (s *URLSigner) signature(jobID string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", jobID, expires)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
