package app

import (
	"github.com/groupxyz/media-relay/internal/domain"
)

// ProviderSet maps provider kinds to their extraction strategy
type ProviderSet struct {
	providers map[domain.ProviderKind]domain.Provider
}

// NewProviderSet registers providers by their Kind. A later provider replaces an earlier one of the same kind.
func NewProviderSet(providers ...domain.Provider) *ProviderSet {
	s := &ProviderSet{providers: make(map[domain.ProviderKind]domain.Provider, len(providers))}
	for _, p := range providers {
		s.providers[p.Kind()] = p
	}
	return s
}

// Select classifies url and returns its provider together with the canonical URL
func (s *ProviderSet) Select(url string) (domain.Provider, string, error) {
	kind := domain.DetectProvider(url)
	p, ok := s.providers[kind]
	if !ok {
		return nil, "", domain.NewError(domain.KindInternal, "Internal server error.")
	}
	return p, domain.CanonicalURL(kind, url), nil
}
