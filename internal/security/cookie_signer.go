package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidSignature はCookie値の署名が一致しない場合のエラー。
var ErrInvalidSignature = errors.New("invalid cookie signature")

// CookieSigner はCookie値にHMAC-SHA256署名を付与・検証する。
// 署名済みの値は "<value>.<base64url(signature)>" の形式となる。
type CookieSigner struct {
	secret []byte
}

// NewCookieSigner はCookieSignerを生成する。
func NewCookieSigner(secret string) *CookieSigner {
	return &CookieSigner{secret: []byte(secret)}
}

// Sign は値に署名を付与した文字列を返す。
func (s *CookieSigner) Sign(value string) string {
	return value + "." + s.mac(value)
}

// Verify は署名済みの値を検証し、元の値を返す。
func (s *CookieSigner) Verify(signed string) (string, error) {
	idx := strings.LastIndexByte(signed, '.')
	if idx <= 0 || idx == len(signed)-1 {
		return "", ErrInvalidSignature
	}
	value, sig := signed[:idx], signed[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(s.mac(value))) {
		return "", ErrInvalidSignature
	}
	return value, nil
}

func (s *CookieSigner) mac(value string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
