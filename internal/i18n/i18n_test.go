package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestResolveTag(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		accept string
		want   language.Tag
	}{
		{name: "default", url: "/", want: language.English},
		{name: "accept language arabic", url: "/", accept: "ar-EG,ar;q=0.9,en;q=0.5", want: language.Arabic},
		{name: "query param wins", url: "/?lang=en", accept: "ar", want: language.English},
		{name: "unsupported falls back", url: "/?lang=ja", want: language.English},
		{name: "garbage header", url: "/", accept: "!!", want: language.English},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			assert.Equal(t, tt.want, ResolveTag(r))
		})
	}
}

func TestT(t *testing.T) {
	en := WithTag(context.Background(), language.English)
	ar := WithTag(context.Background(), language.Arabic)

	assert.Equal(t, "group is full", T(en, "group is full"))
	assert.Equal(t, "المجموعة ممتلئة", T(ar, "group is full"))
	assert.Equal(t, "some unknown key", T(ar, "some unknown key"))
	assert.Equal(t, "group is full", T(context.Background(), "group is full"))
}

func TestMiddleware(t *testing.T) {
	var got language.Tag
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "ar")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, language.Arabic, got)
	assert.Equal(t, "ar", w.Header().Get("Content-Language"))
}
