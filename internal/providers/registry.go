package providers

import (
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/config"
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
)

// Registry holds the adapters enabled by configuration.
type Registry struct {
	adapters map[string]Adapter
	names    []string
}

// BuildRegistry wires every adapter whose credentials are configured.
// GDELT needs no key and is always on.
func BuildRegistry(creds config.ProviderCredentials) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}

	r.add(NewGDELT(creds.GDELTBaseURL))
	if creds.NewsAPIKey != "" {
		r.add(NewNewsAPI(creds.NewsAPIKey))
	}
	if creds.GNewsKey != "" {
		r.add(NewGNews(creds.GNewsKey))
	}
	if creds.NewsDataKey != "" {
		r.add(NewNewsData(creds.NewsDataKey))
	}
	if creds.MediastackKey != "" {
		r.add(NewMediastack(creds.MediastackKey))
	}
	if creds.RSSFeedURLs != "" {
		r.add(NewRSSFeed(creds.RSSFeedURLs))
	}

	logger.Info("provider_registry_built", "providers", r.names)
	return r
}

func (r *Registry) add(a Adapter) {
	r.adapters[a.Name()] = a
	r.names = append(r.names, a.Name())
}

// Names lists the enabled adapter names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get returns the named adapter, or nil when it is not enabled.
func (r *Registry) Get(name string) Adapter { return r.adapters[name] }
