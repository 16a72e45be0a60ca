// Package locale はリクエストの表示言語と一覧表示設定の決定を提供する。
package locale

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

const (
	// CookieName は表示言語を保持するCookieの名前。
	CookieName = "locale"
	// ViewCookieName は一覧の表示形式を保持するCookieの名前。
	ViewCookieName = "registry_view"

	cookieMaxAge = 365 * 24 * 60 * 60
)

// Supported は対応する表示言語。先頭が既定値の候補になる。
var Supported = []language.Tag{language.Russian, language.English}

var matcher = language.NewMatcher(Supported)

// Parse は対応言語のタグを解釈する。未対応の場合はok=falseを返す。
func Parse(s string) (language.Tag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, false
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, false
	}
	base, _ := tag.Base()
	for _, sup := range Supported {
		if b, _ := sup.Base(); b == base {
			return sup, true
		}
	}
	return language.Und, false
}

// Negotiator はリクエストから表示言語を決定する。
type Negotiator struct {
	def language.Tag
}

// NewNegotiator はNegotiatorを生成する。defaultLocaleが未対応の場合はruを既定値とする。
func NewNegotiator(defaultLocale string) *Negotiator {
	def, ok := Parse(defaultLocale)
	if !ok {
		def = language.Russian
	}
	return &Negotiator{def: def}
}

// Default は既定の表示言語を返す。
func (n *Negotiator) Default() language.Tag {
	return n.def
}

// FromRequest はlocale Cookie、Accept-Language、既定値の順で表示言語を決定する。
func (n *Negotiator) FromRequest(r *http.Request) language.Tag {
	if c, err := r.Cookie(CookieName); err == nil {
		if tag, ok := Parse(c.Value); ok {
			return tag
		}
	}

	if header := r.Header.Get("Accept-Language"); header != "" {
		tags, _, err := language.ParseAcceptLanguage(header)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return Supported[idx]
			}
		}
	}

	return n.def
}

type contextKey struct{}

// Middleware は決定した表示言語をリクエストコンテキストに格納するミドルウェアを返す。
func (n *Negotiator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := n.FromRequest(r)
		w.Header().Add("Vary", "Accept-Language")
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(WithTag(r.Context(), tag)))
	})
}

// WithTag はコンテキストに表示言語を格納する。
func WithTag(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// FromContext はコンテキストの表示言語を返す。未設定の場合はlanguage.Undを返す。
func FromContext(ctx context.Context) language.Tag {
	tag, ok := ctx.Value(contextKey{}).(language.Tag)
	if !ok {
		return language.Und
	}
	return tag
}

// ViewPreference はregistry_view Cookieの値を返す。未設定の場合は空文字列。
// 値の妥当性は呼び出し側で検証する。
func ViewPreference(r *http.Request) string {
	c, err := r.Cookie(ViewCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// CookieOptions は設定Cookieの属性。
type CookieOptions struct {
	Domain string
	Secure bool
}

func (o CookieOptions) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   cookieMaxAge,
		Secure:   o.Secure,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetLocaleCookie は表示言語のCookieを設定する。
func SetLocaleCookie(w http.ResponseWriter, tag language.Tag, opts CookieOptions) {
	http.SetCookie(w, opts.cookie(CookieName, tag.String()))
}

// SetViewCookie は一覧表示形式のCookieを設定する。
func SetViewCookie(w http.ResponseWriter, view string, opts CookieOptions) {
	http.SetCookie(w, opts.cookie(ViewCookieName, view))
}
