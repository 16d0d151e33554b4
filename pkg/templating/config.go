package templating

import "github.com/CTAG07/pagetags/pkg/store"

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// SiteID is the site every directive query is scoped to.
	SiteID int64

	// MaxResults caps the number of pages pages_with_tags and
	// pages_similar_with put into the render context, regardless of their
	// limit clause. Zero means no cap.
	MaxResults int

	// MarkdownEnabled controls whether the markdown function renders its
	// input or only escapes it.
	MarkdownEnabled bool
}

// DefaultConfig returns a TemplateConfig scoped to the default site, with no
// result cap and markdown rendering enabled.
func DefaultConfig() TemplateConfig {
	return TemplateConfig{
		SiteID:          store.DefaultSiteID,
		MaxResults:      0,
		MarkdownEnabled: true,
	}
}
