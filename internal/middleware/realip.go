package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies はX-Forwarded-Forを信頼する接続元のアドレス範囲。
type TrustedProxies []netip.Prefix

// ParseTrustedProxies はCIDRまたは単一IPのリストをTrustedProxiesに変換する。
func ParseTrustedProxies(values []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Contains はaddrが信頼済みの範囲に含まれるかどうかを返す。
func (t TrustedProxies) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// NewRealIPMiddleware はクライアントIPを解決するミドルウェアを返す。
// 接続元が信頼済みプロキシの場合のみX-Forwarded-Forを右から辿り、
// 最初に現れた信頼済みでないアドレスをRemoteAddrに設定する。
// それ以外の接続元から届いたX-Forwarded-Forは無視する。
func NewRealIPMiddleware(trusted TrustedProxies) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip, ok := forwardedClientIP(r, trusted); ok {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClientIP(r *http.Request, trusted TrustedProxies) (string, bool) {
	if len(trusted) == 0 {
		return "", false
	}
	peer, err := netip.ParseAddr(ClientIP(r))
	if err != nil || !trusted.Contains(peer) {
		return "", false
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}

	var candidate netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		candidate = addr.Unmap()
		if !trusted.Contains(candidate) {
			break
		}
	}
	if !candidate.IsValid() {
		return "", false
	}
	return candidate.String(), true
}
