package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/gatekeeper/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// flashCookieName はリダイレクトフラグを1回だけ受け渡すためのCookie名。
const flashCookieName = "auth_flash"

// googleLoginPath はサインインボタンの遷移先。ゲートウェイへプロキシされる。
const googleLoginPath = "/auth/google"

// Handler はWebクライアントのHTTPハンドラー。
type Handler struct {
	controller   *Controller
	client       *APIClient
	tmpl         *template.Template
	cookieSecure bool
}

// NewHandler はHandlerを生成する。テンプレートの解析に失敗した場合はエラーを返す。
func NewHandler(controller *Controller, client *APIClient, cookieSecure bool) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		controller:   controller,
		client:       client,
		tmpl:         tmpl,
		cookieSecure: cookieSecure,
	}, nil
}

type pageData struct {
	State
	CSRFToken string
	CSRFField string
	LoginURL  string
}

// Index はビューを決定して描画する。
// auth/errorフラグ付きのリクエストはフラグを一度きりのCookieに移し、フラグを除いたURLへ303でリダイレクトする。
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if flags := ParseFlags(r.URL.Query()); !flags.IsZero() {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    flags.Encode(),
			Path:     "/",
			MaxAge:   60,
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	flags := h.consumeFlash(w, r)
	gw := h.client.ForRequest(r)
	state := h.controller.Resolve(r.Context(), gw, flags)
	h.render(w, r, state)
}

// Logout はログアウトしてログインビューを描画する。
// POST /ui/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	gw := h.client.ForRequest(r)
	state := h.controller.Logout(r.Context(), gw)
	relayCookies(w, gw)
	h.render(w, r, state)
}

// Back は拒否ビューからログインビューへ戻る。セッションは破棄する。
// POST /ui/back
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.Logout(w, r)
}

// Register はホワイトリスト登録を行い、結果のメッセージ付きで現在のビューを描画する。
// POST /ui/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	gw := h.client.ForRequest(r)
	current := h.controller.Resolve(r.Context(), gw, Flags{})
	state := h.controller.Register(r.Context(), gw, r.PostFormValue("email"), current)
	h.render(w, r, state)
}

func (h *Handler) consumeFlash(w http.ResponseWriter, r *http.Request) Flags {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return Flags{}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	q, err := url.ParseQuery(cookie.Value)
	if err != nil {
		slog.Warn("invalid flash cookie", slog.String("error", err.Error()))
		return Flags{}
	}
	return ParseFlags(q)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, state State) {
	data := pageData{
		State:     state,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		CSRFField: middleware.CSRFFormField,
		LoginURL:  googleLoginPath,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("failed to render page", slog.String("error", err.Error()))
	}
}

func relayCookies(w http.ResponseWriter, gw *GatewaySession) {
	for _, c := range gw.SetCookies() {
		http.SetCookie(w, c)
	}
}
