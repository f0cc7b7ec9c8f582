package whitelist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// emailPattern はホワイトリスト登録時に受け付けるメールアドレスの形式。
// 空白と@を含まないローカル部・ドメイン部、ドメイン部に1つ以上のドットを要求する。
// RE2の\sはASCIIの空白のみのため、Unicodeの空白はcontainsSpaceで別途拒否する。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// maxEmailLength はメールアドレスの最大長（RFC 5321のパス長上限）。
const maxEmailLength = 254

// emailRules は登録メールアドレスに適用する検証ルール。
var emailRules = "required,max=" + strconv.Itoa(maxEmailLength) + ",whitelist_email"

// Validator はホワイトリスト登録入力を検証する。
type Validator struct {
	v *validator.Validate
}

// NewValidator は whitelist_email タグを登録したValidatorを生成する。
func NewValidator() *Validator {
	v := validator.New()
	if err := v.RegisterValidation("whitelist_email", validateWhitelistEmail); err != nil {
		panic(fmt.Sprintf("failed to register whitelist_email validator: %v", err))
	}
	return &Validator{v: v}
}

// ValidEmail はメールアドレスが登録可能な形式かどうかを返す。
func (v *Validator) ValidEmail(email string) bool {
	return v.v.Var(email, emailRules) == nil
}

func validateWhitelistEmail(fl validator.FieldLevel) bool {
	email := fl.Field().String()
	return !containsSpace(email) && emailPattern.MatchString(email)
}

// containsSpace はUnicodeの空白類（NBSP、U+2028、垂直タブ等）とBOMを検出する。
func containsSpace(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	}) >= 0
}
