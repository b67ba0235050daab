package domain

import "time"

// ContactStatus enumerates the sales-pipeline states of a lead.
type ContactStatus string

const (
	ContactNew       ContactStatus = "new"
	ContactContacted ContactStatus = "contacted"
	ContactQualified ContactStatus = "qualified"
	ContactConverted ContactStatus = "converted"
	ContactClosed    ContactStatus = "closed"
)

// ContactStatuses lists every valid status in pipeline order.
var ContactStatuses = []ContactStatus{
	ContactNew, ContactContacted, ContactQualified, ContactConverted, ContactClosed,
}

// Valid reports whether s is one of the enumerated statuses.
func (s ContactStatus) Valid() bool {
	for _, v := range ContactStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Priority is the sales priority derived from the optional contact fields.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ServiceType is the closed set of agency services a lead can ask about.
type ServiceType string

const (
	ServiceBrandIdentity      ServiceType = "brandIdentity"
	ServiceWebDevelopment     ServiceType = "webDevelopment"
	ServiceDigitalMarketing   ServiceType = "digitalMarketing"
	ServiceSocialMedia        ServiceType = "socialMedia"
	ServiceVideoProduction    ServiceType = "videoProduction"
	ServiceMusicPodcastMixing ServiceType = "musicPodcastMixing"
	ServiceOther              ServiceType = "other"
)

// ContactSource identifies the intake channel of every stored lead.
const ContactSource = "contact_form"

// DefaultDedupWindow is the span in which a repeat submission from the same
// email is reported as a duplicate instead of stored again.
const DefaultDedupWindow = 5 * time.Minute

// ContactInput is a validated, normalized contact-form submission. It carries
// only caller-supplied fields; everything derived lives on Contact.
type ContactInput struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Message  string        `json:"message"`
	Phone    string        `json:"phone,omitempty"`
	Company  string        `json:"company,omitempty"`
	Website  string        `json:"website,omitempty"`
	Service  ServiceType   `json:"service,omitempty"`
	Services []ServiceType `json:"services,omitempty"`
	Budget   string        `json:"budget,omitempty"`
	Timeline string        `json:"timeline,omitempty"`
}

// Classification is the derived sales metadata of a lead.
type Classification struct {
	Priority  Priority `json:"priority"`
	Tags      []string `json:"tags"`
	LeadScore int      `json:"lead_score"`
}

// Contact is one stored inbound inquiry.
type Contact struct {
	ID        string        `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Email     string        `json:"email" db:"email"`
	Phone     string        `json:"phone,omitempty" db:"phone"`
	Company   string        `json:"company,omitempty" db:"company"`
	Website   string        `json:"website,omitempty" db:"website"`
	Service   ServiceType   `json:"service,omitempty" db:"service"`
	Budget    string        `json:"budget,omitempty" db:"budget"`
	Timeline  string        `json:"timeline,omitempty" db:"timeline"`
	Message   string        `json:"message" db:"message"`
	Status    ContactStatus `json:"status" db:"status"`
	Priority  Priority      `json:"priority" db:"priority"`
	Tags      []string      `json:"tags" db:"tags"`
	LeadScore int           `json:"lead_score" db:"lead_score"`
	Source    string        `json:"source" db:"source"`
	IPAddress string        `json:"ip_address" db:"ip_address"`
	UserAgent string        `json:"user_agent" db:"user_agent"`
	Notes     string        `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// ContactStats aggregates stored leads for the health endpoint.
type ContactStats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByPriority  map[string]int `json:"by_priority"`
	BySource    map[string]int `json:"by_source"`
	Last24Hours int            `json:"last_24_hours"`
}

// StatusUpdate is the admin request to move a lead through the pipeline.
type StatusUpdate struct {
	ID     string        `json:"id"`
	Status ContactStatus `json:"status"`
	Notes  *string       `json:"notes,omitempty"`
}
