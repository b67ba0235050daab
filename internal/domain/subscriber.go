package domain

import (
	"sort"
	"time"
)

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberBounced      SubscriberStatus = "bounced"
	SubscriberPending      SubscriberStatus = "pending"
)

// Frequency is how often a subscriber wants to hear from us.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// Format is the preferred email body format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool { return f == FormatHTML || f == FormatText }

const (
	DefaultSubscriberSource = "direct"
	DefaultEngagementScore  = 50
)

// Preferences are the newsletter delivery preferences of a subscriber.
type Preferences struct {
	Frequency  Frequency `json:"frequency"`
	Categories []string  `json:"categories"`
	Format     Format    `json:"format"`
}

// DefaultPreferences returns the preferences applied to new subscribers.
func DefaultPreferences() Preferences {
	return Preferences{
		Frequency:  FrequencyWeekly,
		Categories: []string{"general", "updates"},
		Format:     FormatHTML,
	}
}

// PreferencePatch holds the preference fields a caller chose to set.
// Nil fields leave the existing value untouched.
type PreferencePatch struct {
	Frequency  *Frequency `json:"frequency,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Format     *Format    `json:"format,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (p PreferencePatch) Empty() bool {
	return p.Frequency == nil && p.Categories == nil && p.Format == nil
}

// Apply returns p's fields laid over base.
func (p PreferencePatch) Apply(base Preferences) Preferences {
	out := base
	out.Categories = append([]string(nil), base.Categories...)
	if p.Frequency != nil {
		out.Frequency = *p.Frequency
	}
	if p.Categories != nil {
		out.Categories = append([]string(nil), p.Categories...)
	}
	if p.Format != nil {
		out.Format = *p.Format
	}
	return out
}

// Subscriber is a newsletter opt-in, unique per email address.
type Subscriber struct {
	ID              string           `json:"id" db:"id"`
	Email           string           `json:"email" db:"email"`
	Status          SubscriberStatus `json:"status" db:"status"`
	Source          string           `json:"source" db:"source"`
	Tags            []string         `json:"tags" db:"tags"`
	Preferences     Preferences      `json:"preferences" db:"preferences"`
	EngagementScore int              `json:"engagement_score" db:"engagement_score"`

	EmailsSent    int        `json:"emails_sent" db:"emails_sent"`
	EmailsOpened  int        `json:"emails_opened" db:"emails_opened"`
	EmailsClicked int        `json:"emails_clicked" db:"emails_clicked"`
	BounceCount   int        `json:"bounce_count" db:"bounce_count"`
	LastEmailSent *time.Time `json:"last_email_sent,omitempty" db:"last_email_sent"`

	IPAddress      string     `json:"ip_address" db:"ip_address"`
	UserAgent      string     `json:"user_agent" db:"user_agent"`
	SubscribedAt   time.Time  `json:"subscribed_at" db:"subscribed_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`
}

// SubscriptionInput is a validated newsletter sign-up.
type SubscriptionInput struct {
	Email       string          `json:"email"`
	Source      string          `json:"source,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Preferences PreferencePatch `json:"preferences"`
}

// PreferenceUpdate is a validated request to change an existing subscriber.
type PreferenceUpdate struct {
	Email       string          `json:"email"`
	Preferences PreferencePatch `json:"preferences"`
	Tags        []string        `json:"tags,omitempty"`
}

// SubscriberStats aggregates subscribers for the health endpoint.
type SubscriberStats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	ByStatus map[string]int `json:"by_status"`
	BySource map[string]int `json:"by_source"`
}

// MergeTags returns the sorted, duplicate-free union of the given tag sets.
// Empty tags are dropped.
func MergeTags(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, set := range sets {
		for _, t := range set {
			if t != "" {
				seen[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
