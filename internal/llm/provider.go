package llm

import (
	"context"
	"net/http"
	"sort"
	"sync"
)

// Provider speaks a chat-completion dialect over plain HTTP. The Client owns
// the transport, retries and body limits.
type Provider interface {
	Name() string
	BuildURL(baseURL string) string
	SetHeaders(req *http.Request, apiKey string)
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)
	ParseResponse(body []byte, model string) (*Response, error)
}

// SDKProvider completes requests through a vendor SDK instead of raw HTTP.
// Errors it returns should already be classified as transient or fatal.
type SDKProvider interface {
	Name() string
	Complete(ctx context.Context, ep Endpoint, req Request) (*Response, error)
}

var (
	providerMu   sync.RWMutex
	httpRegistry = make(map[string]Provider)
	sdkRegistry  = make(map[string]SDKProvider)
)

// RegisterProvider adds an HTTP provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	httpRegistry[p.Name()] = p
}

// RegisterSDKProvider adds an SDK-backed provider to the registry.
func RegisterSDKProvider(p SDKProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	sdkRegistry[p.Name()] = p
}

// GetProvider retrieves an HTTP provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return httpRegistry[name]
}

// GetSDKProvider retrieves an SDK provider by name.
func GetSDKProvider(name string) SDKProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return sdkRegistry[name]
}

// ListProviders returns the sorted names of every registered provider.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	names := make([]string, 0, len(httpRegistry)+len(sdkRegistry))
	for name := range httpRegistry {
		names = append(names, name)
	}
	for name := range sdkRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
