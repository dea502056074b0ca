// Package stats is the administrator view over the registry aggregates.
package stats

import (
	"context"

	"imgbot/internal/access"
	"imgbot/internal/i18n"
	"imgbot/internal/registry"
)

// Source computes the aggregates.
type Source interface {
	ComputeStats(ctx context.Context) (registry.Stats, error)
}

type Service struct {
	src   Source
	admin *access.Admin
	texts *i18n.Resolver
}

func New(src Source, admin *access.Admin, texts *i18n.Resolver) *Service {
	return &Service{src: src, admin: admin, texts: texts}
}

// Get returns the current aggregates. Non-administrators get
// access.ErrUnauthorized and nothing is read.
func (s *Service) Get(ctx context.Context, requesterID int64) (registry.Stats, error) {
	if err := s.admin.Check(requesterID); err != nil {
		return registry.Stats{}, err
	}
	return s.src.ComputeStats(ctx)
}

func (s *Service) Render(locale string, st registry.Stats) string {
	return s.texts.Text(locale, i18n.KeyStatsReport, st.TotalUsers, st.TotalImages, st.ActiveUsers)
}
