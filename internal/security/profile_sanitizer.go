// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer はOAuthプロバイダーから受け取ったプロフィール属性を
// セッションに保存する前に無害化する。
// CookieSigner はセッションCookieの改ざん検知を行う。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// maxDisplayNameLength は表示名として保持する最大文字数。
const maxDisplayNameLength = 256

// ProfileSanitizer はIdentityの表示用属性を無害化する。
// bluemondayのStrictPolicyでマークアップを全て除去し、
// アバターURLはhttpsスキームのみを許可する。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はIdentityのコピーを無害化して返す。
// IDとEmailは照合に使用するため変更しない。
func (s *ProfileSanitizer) Sanitize(identity model.Identity) model.Identity {
	identity.Name = s.sanitizeName(identity.Name)
	identity.Picture = sanitizePictureURL(identity.Picture)
	return identity
}

func (s *ProfileSanitizer) sanitizeName(name string) string {
	// StrictPolicyはエンティティをエスケープするため、表示時の二重エスケープを避けて戻す
	cleaned := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
	runes := []rune(cleaned)
	if len(runes) > maxDisplayNameLength {
		cleaned = string(runes[:maxDisplayNameLength])
	}
	return cleaned
}

// sanitizePictureURL はhttpsの絶対URLのみを通過させ、それ以外は空文字列にする。
func sanitizePictureURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}
