package validation

import (
	"strings"

	"github.com/jbrand/leadintake/internal/domain"
)

// serviceAliases maps lower-cased spellings, including the names used by
// older versions of the site form, to the canonical service.
var serviceAliases = map[string]domain.ServiceType{
	"brandidentity":      domain.ServiceBrandIdentity,
	"brand-identity":     domain.ServiceBrandIdentity,
	"branding":           domain.ServiceBrandIdentity,
	"brand":              domain.ServiceBrandIdentity,
	"logo":               domain.ServiceBrandIdentity,
	"webdevelopment":     domain.ServiceWebDevelopment,
	"web-development":    domain.ServiceWebDevelopment,
	"web":                domain.ServiceWebDevelopment,
	"website":            domain.ServiceWebDevelopment,
	"webdesign":          domain.ServiceWebDevelopment,
	"web-design":         domain.ServiceWebDevelopment,
	"digitalmarketing":   domain.ServiceDigitalMarketing,
	"digital-marketing":  domain.ServiceDigitalMarketing,
	"marketing":          domain.ServiceDigitalMarketing,
	"seo":                domain.ServiceDigitalMarketing,
	"socialmedia":        domain.ServiceSocialMedia,
	"social-media":       domain.ServiceSocialMedia,
	"social":             domain.ServiceSocialMedia,
	"videoproduction":    domain.ServiceVideoProduction,
	"video-production":   domain.ServiceVideoProduction,
	"video":              domain.ServiceVideoProduction,
	"musicpodcastmixing": domain.ServiceMusicPodcastMixing,
	"music-podcast":      domain.ServiceMusicPodcastMixing,
	"music":              domain.ServiceMusicPodcastMixing,
	"podcast":            domain.ServiceMusicPodcastMixing,
	"mixing":             domain.ServiceMusicPodcastMixing,
	"audio":              domain.ServiceMusicPodcastMixing,
	"other":              domain.ServiceOther,
}

// ParseService resolves a service name, case-insensitively and including
// legacy synonyms, to its canonical value.
func ParseService(name string) (domain.ServiceType, bool) {
	st, ok := serviceAliases[strings.ToLower(strings.TrimSpace(name))]
	return st, ok
}
