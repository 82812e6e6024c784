package upload

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LocalUploadPrefix is the route served by the local API for uploads.
const LocalUploadPrefix = "/uploads/"

var (
	ErrURLExpired          = errors.New("upload url expired")
	ErrSignatureMismatch   = errors.New("upload url signature mismatch")
	ErrContentTypeMismatch = errors.New("upload content type mismatch")
)

// LocalPresigner signs URLs for the local server's upload route so the
// analyze flow can be exercised without a cloud bucket.
type LocalPresigner struct {
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewLocalPresigner creates a presigner for baseURL. A random secret is
// generated when secret is empty, so URLs do not survive a restart.
func NewLocalPresigner(baseURL string, secret []byte) (*LocalPresigner, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate upload secret: %w", err)
		}
	}
	return &LocalPresigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func (p *LocalPresigner) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	expires := p.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("content_type", contentType)
	q.Set("signature", p.sign(key, contentType, expires))

	return p.baseURL + LocalUploadPrefix + key + "?" + q.Encode(), nil
}

// Verify checks a PUT against the query parameters of a URL issued by
// PresignPut. contentType is the Content-Type header of the request.
func (p *LocalPresigner) Verify(key, contentType string, query url.Values) error {
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		return ErrSignatureMismatch
	}

	signed := query.Get("content_type")
	want := p.sign(key, signed, expires)
	if !hmac.Equal([]byte(want), []byte(query.Get("signature"))) {
		return ErrSignatureMismatch
	}

	if p.now().Unix() > expires {
		return ErrURLExpired
	}

	if signed != "" && contentType != signed {
		return fmt.Errorf("%w: want %s, got %s", ErrContentTypeMismatch, signed, contentType)
	}

	return nil
}

func (p *LocalPresigner) sign(key, contentType string, expires int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", key, contentType, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
