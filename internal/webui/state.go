// Package webui はサーバーレンダリングのWebクライアントを提供する。
// ログイン・読み込み中・ようこそ・拒否の4つのビューを、リダイレクトフラグと
// ゲートウェイへのセッション照会から決定する。
package webui

import (
	"net/url"
	"strings"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// View は表示中のビューを表す。常にいずれか1つだけが表示される。
type View string

const (
	ViewLogin   View = "login"
	ViewLoading View = "loading"
	ViewWelcome View = "welcome"
	ViewDenied  View = "denied"
)

// メッセージの種別。テンプレートのCSSクラスに使う。
const (
	MessageSuccess = "success"
	MessageError   = "error"
)

const avatarFallbackURL = "https://ui-avatars.com/api/?name="

// Flags はOAuthコールバック後のリダイレクトで付与されるクエリフラグ。
type Flags struct {
	Auth  string // success | denied
	Error string // auth_failed | server_error
}

// ParseFlags はクエリパラメータからFlagsを取り出す。
func ParseFlags(q url.Values) Flags {
	return Flags{
		Auth:  q.Get(model.AuthParam),
		Error: q.Get(model.ErrorParam),
	}
}

// IsZero はフラグが1つも設定されていないかどうかを返す。
func (f Flags) IsZero() bool {
	return f.Auth == "" && f.Error == ""
}

// Encode はフラグをクエリ文字列形式にする。空の値は含めない。
func (f Flags) Encode() string {
	v := url.Values{}
	if f.Auth != "" {
		v.Set(model.AuthParam, f.Auth)
	}
	if f.Error != "" {
		v.Set(model.ErrorParam, f.Error)
	}
	return v.Encode()
}

// State は描画に必要なクライアントの状態。
type State struct {
	View        View
	User        *model.Identity // ViewWelcomeのときのみ
	DeniedEmail string          // ViewDeniedのときのみ
	Message     string
	MessageKind string
	EmailInput  string
}

// AvatarURL はようこそビューに表示するアバター画像のURLを返す。
// プロフィール画像がない場合は名前から生成する外部サービスのURLを使う。
func (s State) AvatarURL() string {
	if s.User == nil {
		return ""
	}
	if s.User.Picture != "" {
		return s.User.Picture
	}
	return avatarFallbackURL + strings.ReplaceAll(url.QueryEscape(s.User.Name), "+", "%20")
}

func loginState() State {
	return State{View: ViewLogin}
}
