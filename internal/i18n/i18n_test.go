package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "AppTitle", "Mock Center"},
		{"en", "SectionListening", "Listening"},
		{"ru", "SectionReading", "Чтение"},
		{"ru", "OverallBand", "Общий балл"},
		{"uz", "Correct", "To'g'ri"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Tp(ctx, "QuestionsAnswered", 1); got != "1 question answered" {
		t.Errorf("Tp(QuestionsAnswered, 1) = %q", got)
	}
	if got := Tp(ctx, "QuestionsAnswered", 38); got != "38 questions answered" {
		t.Errorf("Tp(QuestionsAnswered, 38) = %q", got)
	}

	ctx = initLang(t, "ru")
	if got := Tp(ctx, "QuestionsAnswered", 5); got != "5 вопросов отвечено" {
		t.Errorf("ru Tp(QuestionsAnswered, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Td(ctx, "PartN", map[string]any{"N": 3}); got != "Part 3" {
		t.Errorf("Td(PartN, N=3) = %q", got)
	}
	got := Td(ctx, "WordsOfMin", map[string]any{"Words": 120, "Min": 150})
	if got != "120 words (minimum 150)" {
		t.Errorf("Td(WordsOfMin) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		name     string
		query    string
		accept   string
		want     string
		wantLang string
	}{
		{"default", "", "", "Writing", "en"},
		{"accept-language", "", "ru-RU,ru;q=0.9,en;q=0.5", "Письмо", "ru"},
		{"query wins", "uz", "ru", "Yozish", "uz"},
		{"unsupported", "", "fr-FR", "Writing", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got, gotLang string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "SectionWriting")
				gotLang = Lang(r.Context())
			}))
			target := "/"
			if tt.query != "" {
				target += "?lang=" + tt.query
			}
			r := httptest.NewRequest("GET", target, nil)
			if tt.accept != "" {
				r.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), r)
			if got != tt.want || gotLang != tt.wantLang {
				t.Errorf("got %q (%s), want %q (%s)", got, gotLang, tt.want, tt.wantLang)
			}
		})
	}
}
