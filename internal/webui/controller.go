package webui

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// ユーザーに表示するメッセージ。
const (
	msgAuthFailed        = "Authentication failed. Please try again."
	msgEmailRequired     = "Please enter an email address"
	msgRegistered        = "Email registered! You can now sign in."
	msgRegisterFailed    = "Failed to register email"
	msgRegisterTransport = "Failed to register. Please try again."
)

// MeResult はゲートウェイの /auth/me の結果。
type MeResult struct {
	Authenticated bool            `json:"authenticated"`
	User          *model.Identity `json:"user,omitempty"`
	IsWhitelisted bool            `json:"isWhitelisted"`
}

// RegisterResult はゲートウェイの /api/whitelist の結果。
// Createdがfalseの場合、Errorにはゲートウェイが返したメッセージが入る（空の場合もある）。
type RegisterResult struct {
	Created bool
	Error   string
}

// Gateway はコントローラーが利用するゲートウェイAPI。
// 返すerrorは通信の失敗を表し、ゲートウェイのエラー応答は結果の値で表す。
type Gateway interface {
	Me(ctx context.Context) (*MeResult, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, email string) (*RegisterResult, error)
}

// Controller はクライアントのビュー遷移を決める状態機械。
type Controller struct {
	// OnView はビューが切り替わるたびに呼ばれる。nilでもよい。
	OnView func(View)
}

// NewController はControllerを生成する。
func NewController(onView func(View)) *Controller {
	return &Controller{OnView: onView}
}

// Resolve はリダイレクトフラグとセッション照会から表示するビューを決める。
//
//	auth=success: 読み込み中 → 照会。認証済みかつ許可済みならようこそ、それ以外はログイン
//	auth=denied:  読み込み中 → 照会。認証済みなら拒否（メールアドレスを表示）、それ以外はログイン
//	error あり:   エラーメッセージ付きのログイン
//	フラグなし:   照会。許可済みならようこそ、未許可なら拒否、未認証ならログイン
//
// 照会に失敗した場合はログインになる。
func (c *Controller) Resolve(ctx context.Context, gw Gateway, flags Flags) State {
	switch {
	case flags.Auth == model.AuthStatusSuccess:
		c.show(ViewLoading)
		me, ok := c.probe(ctx, gw)
		if ok && me.Authenticated && me.IsWhitelisted {
			return c.welcome(me)
		}
		return c.login()

	case flags.Auth == model.AuthStatusDenied:
		c.show(ViewLoading)
		me, ok := c.probe(ctx, gw)
		if ok && me.Authenticated {
			return c.denied(me)
		}
		return c.login()

	case flags.Error != "":
		s := c.login()
		s.Message = msgAuthFailed
		s.MessageKind = MessageError
		return s
	}

	me, ok := c.probe(ctx, gw)
	switch {
	case !ok || !me.Authenticated:
		return c.login()
	case me.IsWhitelisted:
		return c.welcome(me)
	default:
		return c.denied(me)
	}
}

// Logout はゲートウェイのログアウトを呼び、メッセージを消したログインビューを返す。
// ログアウトに失敗してもログインビューに戻る。
func (c *Controller) Logout(ctx context.Context, gw Gateway) State {
	if err := gw.Logout(ctx); err != nil {
		slog.Error("gateway logout failed", slog.String("error", err.Error()))
	}
	return c.login()
}

// Register はメールアドレスのホワイトリスト登録を行い、結果のメッセージを付けた状態を返す。
// ビューは変わらない。
func (c *Controller) Register(ctx context.Context, gw Gateway, email string, current State) State {
	s := current
	email = strings.TrimSpace(email)
	s.EmailInput = email

	if email == "" {
		s.Message = msgEmailRequired
		s.MessageKind = MessageError
		return s
	}

	res, err := gw.Register(ctx, email)
	if err != nil {
		slog.Error("gateway registration failed", slog.String("error", err.Error()))
		s.Message = msgRegisterTransport
		s.MessageKind = MessageError
		return s
	}

	if res.Created {
		s.Message = msgRegistered
		s.MessageKind = MessageSuccess
		s.EmailInput = ""
		return s
	}

	s.Message = res.Error
	if s.Message == "" {
		s.Message = msgRegisterFailed
	}
	s.MessageKind = MessageError
	return s
}

func (c *Controller) probe(ctx context.Context, gw Gateway) (*MeResult, bool) {
	me, err := gw.Me(ctx)
	if err != nil {
		slog.Warn("session probe failed", slog.String("error", err.Error()))
		return nil, false
	}
	return me, true
}

func (c *Controller) welcome(me *MeResult) State {
	if me.User == nil {
		return c.login()
	}
	c.show(ViewWelcome)
	return State{View: ViewWelcome, User: me.User}
}

func (c *Controller) denied(me *MeResult) State {
	s := State{View: ViewDenied}
	if me.User != nil {
		s.DeniedEmail = me.User.Email
	}
	c.show(ViewDenied)
	return s
}

func (c *Controller) login() State {
	c.show(ViewLogin)
	return loginState()
}

func (c *Controller) show(v View) {
	if c.OnView != nil {
		c.OnView(v)
	}
}
