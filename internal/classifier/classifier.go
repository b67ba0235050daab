// Package classifier derives sales metadata from validated leads and segment
// tags from newsletter sign-ups. All functions are pure.
package classifier

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jbrand/leadintake/internal/domain"
)

// Lead score weights.
const (
	scoreBase           = 10
	scoreCompany        = 30
	scorePhone          = 25
	scoreWebsite        = 15
	scorePerKeyword     = 5
	scoreMessageOver50  = 5
	scoreMessageOver100 = 10
	scoreMessageOver200 = 20
)

// highValueKeywords raise the lead score when found as whole words.
var highValueKeywords = []string{
	"budget", "timeline", "project", "business", "enterprise",
	"corporate", "professional", "urgent", "asap",
}

var keywordPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(highValueKeywords))
	for i, kw := range highValueKeywords {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return out
}()

// Priority is high with both company and phone, medium with one, low otherwise.
func Priority(in domain.ContactInput) domain.Priority {
	n := 0
	if in.Company != "" {
		n++
	}
	if in.Phone != "" {
		n++
	}
	switch n {
	case 2:
		return domain.PriorityHigh
	case 1:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// ContactTags returns the sorted tag set for a lead at the given priority.
func ContactTags(in domain.ContactInput, p domain.Priority) []string {
	tags := []string{"priority-" + string(p)}
	if in.Company != "" {
		tags = append(tags, "business")
	}
	if in.Phone != "" {
		tags = append(tags, "phone-provided")
	}
	if in.Website != "" {
		tags = append(tags, "has-website")
	}
	if in.Service != "" {
		tags = append(tags, "service-"+string(in.Service))
	}
	for _, s := range in.Services {
		tags = append(tags, "service-"+string(s))
	}
	return domain.MergeTags(tags)
}

// KeywordMatches counts the distinct high-value keywords in message.
func KeywordMatches(message string) int {
	n := 0
	for _, re := range keywordPatterns {
		if re.MatchString(message) {
			n++
		}
	}
	return n
}

// LeadScore estimates the sales value of a lead, clamped to [0,100].
func LeadScore(in domain.ContactInput) int {
	score := scoreBase
	if in.Company != "" {
		score += scoreCompany
	}
	if in.Phone != "" {
		score += scorePhone
	}
	if in.Website != "" {
		score += scoreWebsite
	}
	switch n := utf8.RuneCountInString(in.Message); {
	case n > 200:
		score += scoreMessageOver200
	case n > 100:
		score += scoreMessageOver100
	case n > 50:
		score += scoreMessageOver50
	}
	score += scorePerKeyword * KeywordMatches(in.Message)
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Classify computes priority, tags and lead score in one pass.
func Classify(in domain.ContactInput) domain.Classification {
	p := Priority(in)
	return domain.Classification{
		Priority:  p,
		Tags:      ContactTags(in, p),
		LeadScore: LeadScore(in),
	}
}

var mobileMarkers = []string{"mobile", "android", "iphone", "ipad", "ipod", "windows phone"}

// DeviceTag guesses the sign-up device from a user agent.
func DeviceTag(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if ua == "" || ua == domain.UnknownClientValue {
		return ""
	}
	for _, m := range mobileMarkers {
		if strings.Contains(ua, m) {
			return "mobile"
		}
	}
	return "desktop"
}

// TimeOfDayTag buckets the sign-up hour.
func TimeOfDayTag(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning-subscriber"
	case h >= 12 && h < 17:
		return "afternoon-subscriber"
	case h >= 17 && h < 22:
		return "evening-subscriber"
	default:
		return "night-subscriber"
	}
}

// DayOfWeekTag distinguishes weekend from weekday sign-ups.
func DayOfWeekTag(t time.Time) string {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "weekend-subscriber"
	}
	return "weekday-subscriber"
}

// SubscriberTags derives segment tags for a sign-up and merges them with the
// tags the caller supplied explicitly.
func SubscriberTags(in domain.SubscriptionInput, client domain.ClientInfo, now time.Time) []string {
	tags := []string{TimeOfDayTag(now), DayOfWeekTag(now)}
	if d := DeviceTag(client.UserAgent); d != "" {
		tags = append(tags, d)
	}
	if in.Source != "" {
		tags = append(tags, "source-"+strings.ToLower(in.Source))
	}
	return domain.MergeTags(tags, in.Tags)
}
