package webui

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hitoshi/gatekeeper/internal/model"
)

// --- モック定義 ---

type mockGateway struct {
	meFn       func(ctx context.Context) (*MeResult, error)
	logoutFn   func(ctx context.Context) error
	registerFn func(ctx context.Context, email string) (*RegisterResult, error)
	meCalls    int
}

func (m *mockGateway) Me(ctx context.Context) (*MeResult, error) {
	m.meCalls++
	if m.meFn != nil {
		return m.meFn(ctx)
	}
	return &MeResult{}, nil
}

func (m *mockGateway) Logout(ctx context.Context) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

func (m *mockGateway) Register(ctx context.Context, email string) (*RegisterResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email)
	}
	return &RegisterResult{Created: true}, nil
}

var (
	alice = &model.Identity{ID: "g-1", Email: "alice@example.com", Name: "Alice"}

	whitelistedMe = func(ctx context.Context) (*MeResult, error) {
		return &MeResult{Authenticated: true, User: alice, IsWhitelisted: true}, nil
	}
	deniedMe = func(ctx context.Context) (*MeResult, error) {
		return &MeResult{Authenticated: true, User: alice, IsWhitelisted: false}, nil
	}
	anonymousMe = func(ctx context.Context) (*MeResult, error) {
		return &MeResult{Authenticated: false}, nil
	}
	failingMe = func(ctx context.Context) (*MeResult, error) {
		return nil, errors.New("connection refused")
	}
)

// --- テスト ---

func TestController_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		flags     Flags
		me        func(ctx context.Context) (*MeResult, error)
		wantView  View
		wantViews []View
		wantMsg   string
		wantProbe bool
	}{
		{"success whitelisted", Flags{Auth: "success"}, whitelistedMe, ViewWelcome, []View{ViewLoading, ViewWelcome}, "", true},
		{"success not whitelisted", Flags{Auth: "success"}, deniedMe, ViewLogin, []View{ViewLoading, ViewLogin}, "", true},
		{"success anonymous", Flags{Auth: "success"}, anonymousMe, ViewLogin, []View{ViewLoading, ViewLogin}, "", true},
		{"success probe failure", Flags{Auth: "success"}, failingMe, ViewLogin, []View{ViewLoading, ViewLogin}, "", true},
		{"denied authenticated", Flags{Auth: "denied"}, deniedMe, ViewDenied, []View{ViewLoading, ViewDenied}, "", true},
		{"denied anonymous", Flags{Auth: "denied"}, anonymousMe, ViewLogin, []View{ViewLoading, ViewLogin}, "", true},
		{"error flag", Flags{Error: "auth_failed"}, whitelistedMe, ViewLogin, []View{ViewLogin}, msgAuthFailed, false},
		{"reload whitelisted", Flags{}, whitelistedMe, ViewWelcome, []View{ViewWelcome}, "", true},
		{"reload not whitelisted", Flags{}, deniedMe, ViewDenied, []View{ViewDenied}, "", true},
		{"reload anonymous", Flags{}, anonymousMe, ViewLogin, []View{ViewLogin}, "", true},
		{"reload probe failure", Flags{}, failingMe, ViewLogin, []View{ViewLogin}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var views []View
			c := NewController(func(v View) { views = append(views, v) })
			gw := &mockGateway{meFn: tt.me}

			got := c.Resolve(context.Background(), gw, tt.flags)

			if got.View != tt.wantView {
				t.Errorf("View = %q, want %q", got.View, tt.wantView)
			}
			if !reflect.DeepEqual(views, tt.wantViews) {
				t.Errorf("views = %v, want %v", views, tt.wantViews)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
			if (gw.meCalls > 0) != tt.wantProbe {
				t.Errorf("probe calls = %d, want probe %v", gw.meCalls, tt.wantProbe)
			}
		})
	}
}

func TestController_Resolve_DeniedShowsEmail(t *testing.T) {
	c := NewController(nil)

	got := c.Resolve(context.Background(), &mockGateway{meFn: deniedMe}, Flags{Auth: "denied"})

	if got.DeniedEmail != "alice@example.com" {
		t.Errorf("DeniedEmail = %q, want %q", got.DeniedEmail, "alice@example.com")
	}
}

func TestController_Resolve_WelcomeCarriesUser(t *testing.T) {
	c := NewController(nil)

	got := c.Resolve(context.Background(), &mockGateway{meFn: whitelistedMe}, Flags{})

	if got.User == nil || got.User.Name != "Alice" {
		t.Errorf("User = %+v, want Alice", got.User)
	}
}

func TestController_Logout_AlwaysReturnsLogin(t *testing.T) {
	for _, logoutErr := range []error{nil, errors.New("gateway unavailable")} {
		var views []View
		c := NewController(func(v View) { views = append(views, v) })
		gw := &mockGateway{logoutFn: func(ctx context.Context) error { return logoutErr }}

		got := c.Logout(context.Background(), gw)

		if got.View != ViewLogin || got.Message != "" {
			t.Errorf("logout err=%v: state = %+v, want clean login", logoutErr, got)
		}
		if !reflect.DeepEqual(views, []View{ViewLogin}) {
			t.Errorf("views = %v, want [login]", views)
		}
	}
}

func TestController_Register(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		result     *RegisterResult
		err        error
		wantMsg    string
		wantKind   string
		wantInput  string
		wantCalled bool
	}{
		{"empty input", "   ", nil, nil, msgEmailRequired, MessageError, "", false},
		{"created", " foo@bar.com ", &RegisterResult{Created: true}, nil, msgRegistered, MessageSuccess, "", true},
		{"gateway error message", "foo@bar.com", &RegisterResult{Error: "Email already whitelisted"}, nil, "Email already whitelisted", MessageError, "foo@bar.com", true},
		{"gateway error without message", "foo@bar.com", &RegisterResult{}, nil, msgRegisterFailed, MessageError, "foo@bar.com", true},
		{"transport failure", "foo@bar.com", nil, errors.New("timeout"), msgRegisterTransport, MessageError, "foo@bar.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var views []View
			c := NewController(func(v View) { views = append(views, v) })
			called := false
			gw := &mockGateway{
				registerFn: func(ctx context.Context, email string) (*RegisterResult, error) {
					called = true
					if email != "foo@bar.com" {
						t.Errorf("email = %q, want trimmed %q", email, "foo@bar.com")
					}
					return tt.result, tt.err
				},
			}

			got := c.Register(context.Background(), gw, tt.input, State{View: ViewLogin})

			if got.View != ViewLogin {
				t.Errorf("View = %q, want unchanged login", got.View)
			}
			if got.Message != tt.wantMsg || got.MessageKind != tt.wantKind {
				t.Errorf("message = %q (%s), want %q (%s)", got.Message, got.MessageKind, tt.wantMsg, tt.wantKind)
			}
			if got.EmailInput != tt.wantInput {
				t.Errorf("EmailInput = %q, want %q", got.EmailInput, tt.wantInput)
			}
			if called != tt.wantCalled {
				t.Errorf("gateway called = %v, want %v", called, tt.wantCalled)
			}
			if len(views) != 0 {
				t.Errorf("views = %v, registration should not change the view", views)
			}
		})
	}
}

func TestState_AvatarURL(t *testing.T) {
	withPicture := State{User: &model.Identity{Name: "Alice", Picture: "https://lh3.googleusercontent.com/a/x.jpg"}}
	if got := withPicture.AvatarURL(); got != "https://lh3.googleusercontent.com/a/x.jpg" {
		t.Errorf("AvatarURL() = %q", got)
	}

	fallback := State{User: &model.Identity{Name: "Alice Smith & Co"}}
	if got, want := fallback.AvatarURL(), "https://ui-avatars.com/api/?name=Alice%20Smith%20%26%20Co"; got != want {
		t.Errorf("AvatarURL() = %q, want %q", got, want)
	}

	if got := (State{}).AvatarURL(); got != "" {
		t.Errorf("AvatarURL() without user = %q, want empty", got)
	}
}

func TestFlags_EncodeAndParse(t *testing.T) {
	f := Flags{Auth: "denied"}
	if f.IsZero() {
		t.Error("IsZero() should be false")
	}
	if got := f.Encode(); got != "auth=denied" {
		t.Errorf("Encode() = %q, want %q", got, "auth=denied")
	}
	if !(Flags{}).IsZero() {
		t.Error("empty flags should be zero")
	}
}
