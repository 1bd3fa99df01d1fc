package registry

import (
	"net"
	"net/url"
	"strings"

	clierr "github.com/ggonzalez94/yieldsensei/internal/errors"
)

const (
	DefiLlamaAPIBaseURL    = "https://api.llama.fi"
	DefiLlamaYieldsBaseURL = "https://yields.llama.fi"
	AnthropicBaseURL       = "https://api.anthropic.com"
	OpenAIBaseURL          = "https://api.openai.com/v1"
)

type Service string

const (
	ServiceDefiLlama Service = "defillama"
	ServiceAnthropic Service = "anthropic"
	ServiceOpenAI    Service = "openai"
)

// pinnedDomains restricts services whose data must come from the vendor.
// Services without an entry accept any https host, which lets LLM traffic
// go through gateways.
var pinnedDomains = map[Service]string{
	ServiceDefiLlama: "llama.fi",
}

func DefaultBaseURL(service Service) (string, bool) {
	switch service {
	case ServiceDefiLlama:
		return DefiLlamaAPIBaseURL, true
	case ServiceAnthropic:
		return AnthropicBaseURL, true
	case ServiceOpenAI:
		return OpenAIBaseURL, true
	default:
		return "", false
	}
}

// CheckBaseURL validates a configured base URL. Empty means the default.
// Loopback hosts may use plain http.
func CheckBaseURL(service Service, endpoint string) error {
	raw := strings.TrimSpace(endpoint)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || strings.TrimSpace(parsed.Hostname()) == "" {
		return clierr.New(clierr.CodeUsage, "invalid "+string(service)+" base url: "+raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if isLoopbackHost(parsed.Hostname()) {
		if scheme == "http" || scheme == "https" {
			return nil
		}
		return clierr.New(clierr.CodeUsage, string(service)+" base url must use http or https")
	}
	if scheme != "https" {
		return clierr.New(clierr.CodeUsage, string(service)+" base url must use https")
	}
	if domain, ok := pinnedDomains[service]; ok && !hostInDomain(parsed.Hostname(), domain) {
		return clierr.New(clierr.CodeUsage, string(service)+" base url must point at "+domain)
	}
	return nil
}

func hostInDomain(host, domain string) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	return h == domain || strings.HasSuffix(h, "."+domain)
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
