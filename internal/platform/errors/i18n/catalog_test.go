package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	if fallback := GetCatalog("missing-locale"); fallback != base {
		t.Fatal("expected fallback to en-US catalog for unparseable locale")
	}
	if fallback := GetCatalog(""); fallback != base {
		t.Fatal("expected empty locale to resolve to en-US")
	}
}

func TestGetCatalogMatchesRegionVariant(t *testing.T) {
	custom := NewCatalog("pt-BR", map[Code]string{"code": "olá"})
	catalogsMu.Lock()
	catalogs["pt-BR"] = custom
	catalogsMu.Unlock()
	t.Cleanup(func() {
		catalogsMu.Lock()
		delete(catalogs, "pt-BR")
		catalogsMu.Unlock()
	})
	if got := GetCatalog("pt"); got != custom {
		t.Fatalf("GetCatalog(pt) = %v, want pt-BR catalog", got.Locale())
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if got := cat.Format("code", map[string]string{"Name": "Nyx"}); got != "hello Nyx" {
		t.Fatalf("format = %q", got)
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestBaseCatalogRendersFundsMessage(t *testing.T) {
	got := GetCatalog(BaseLocale).Format(CodeInsufficientFunds, map[string]string{"Cost": "500", "Balance": "20"})
	if got != "You need 500 coins but only have 20." {
		t.Fatalf("format = %q", got)
	}
}
