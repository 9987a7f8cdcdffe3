package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware picks the response language from the "lang" query parameter or
// the Accept-Language header and stores the localizer in the request context.
func Middleware(next http.Handler) http.Handler {
	matcher := language.NewMatcher(Supported())
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := r.URL.Query().Get("lang")
		if lang == "" {
			lang = r.Header.Get("Accept-Language")
		}
		loc := NewLocalizer()
		if lang != "" {
			tag, _ := language.MatchStrings(matcher, lang)
			base, _ := tag.Base()
			loc = NewLocalizer(base.String())
		}
		next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
	})
}
