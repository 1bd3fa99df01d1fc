package registry

import (
	"testing"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

func TestCheckBaseURL(t *testing.T) {
	cases := []struct {
		service Service
		url     string
		ok      bool
	}{
		{ServiceDefiLlama, "", true},
		{ServiceDefiLlama, "https://api.llama.fi", true},
		{ServiceDefiLlama, "https://pro-api.llama.fi/key", true},
		{ServiceDefiLlama, "http://127.0.0.1:8080", true},
		{ServiceDefiLlama, "http://localhost:8080", true},
		{ServiceDefiLlama, "http://api.llama.fi", false},
		{ServiceDefiLlama, "https://evil-llama.fi", false},
		{ServiceDefiLlama, "https://example.com", false},
		{ServiceOpenAI, "https://gateway.example.com/v1", true},
		{ServiceAnthropic, "http://gateway.example.com", false},
		{ServiceAnthropic, "ftp://localhost", false},
		{ServiceOpenAI, "://bad", false},
	}
	for _, tc := range cases {
		err := CheckBaseURL(tc.service, tc.url)
		if tc.ok && err != nil {
			t.Fatalf("%s %q: unexpected error %v", tc.service, tc.url, err)
		}
		if !tc.ok && !clierr.Is(err, clierr.CodeUsage) {
			t.Fatalf("%s %q: expected usage error, got %v", tc.service, tc.url, err)
		}
	}
}

func TestDefaultBaseURL(t *testing.T) {
	for _, s := range []Service{ServiceDefiLlama, ServiceAnthropic, ServiceOpenAI} {
		if u, ok := DefaultBaseURL(s); !ok || CheckBaseURL(s, u) != nil {
			t.Fatalf("default for %s should be valid, got %q", s, u)
		}
	}
	if _, ok := DefaultBaseURL("other"); ok {
		t.Fatal("unexpected default for unknown service")
	}
}
