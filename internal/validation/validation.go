// Package validation turns untrusted form payloads into normalized domain
// inputs. Every function is pure: it returns a Result carrying the
// normalized value and the list of rejected fields. Value is only meaningful
// when the list is empty.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jbrand/leadintake/internal/domain"
)

// Field limits.
const (
	NameMin       = 2
	NameMax       = 100
	MessageMin    = 10
	MessageMax    = 2000
	EmailMax      = 254
	ShortFieldMax = 200
	TagMax        = 50
	MaxTags       = 20
	NotesMax      = 2000
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-().]{6,19}$`)
)

// Result is the outcome of validating one payload.
type Result[T any] struct {
	Value  T
	Fields []domain.FieldError
}

// OK reports whether validation succeeded.
func (r Result[T]) OK() bool { return len(r.Fields) == 0 }

// Err returns a validation *domain.Error, or nil when r is OK.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	return domain.ValidationError(r.Fields...)
}

// checker accumulates field errors while reading a raw payload.
type checker struct {
	raw    map[string]any
	fields []domain.FieldError
}

func newChecker(raw map[string]any) *checker {
	if raw == nil {
		raw = map[string]any{}
	}
	return &checker{raw: raw}
}

func (c *checker) fail(field, format string, args ...any) {
	c.fields = append(c.fields, domain.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) failed(field string) bool {
	for _, f := range c.fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// str reads a scalar field as a trimmed string. Numbers and booleans are
// coerced; arrays and objects are rejected.
func (c *checker) str(field string) string {
	v, ok := c.raw[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int64, bool:
		return fmt.Sprint(t)
	default:
		c.fail(field, "%s must be a string", field)
		return ""
	}
}

// list reads an array-of-strings field. A single string is accepted as a
// one-element list.
func (c *checker) list(field string) ([]string, bool) {
	v, ok := c.raw[field]
	if !ok || v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}, true
		}
		return []string{}, true
	case []string:
		return trimAll(t), true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				c.fail(field, "%s must be a list of strings", field)
				return nil, false
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	default:
		c.fail(field, "%s must be a list of strings", field)
		return nil, false
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *checker) length(field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	switch {
	case n < min:
		c.fail(field, "%s must be at least %d characters", field, min)
	case n > max:
		c.fail(field, "%s must be at most %d characters", field, max)
	}
}

// email reads, normalizes and checks the email field.
func (c *checker) email(required bool) string {
	email := strings.ToLower(c.str("email"))
	if c.failed("email") {
		return ""
	}
	if email == "" {
		if required {
			c.fail("email", "email is required")
		}
		return ""
	}
	if len(email) > EmailMax || !emailPattern.MatchString(email) {
		c.fail("email", "email is not a valid email address")
		return ""
	}
	return email
}

// NormalizeEmail lower-cases and trims an address and reports whether it is
// syntactically valid.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	return email, email != "" && len(email) <= EmailMax && emailPattern.MatchString(email)
}

func (c *checker) phone() string {
	phone := c.str("phone")
	if phone != "" && !phonePattern.MatchString(phone) {
		c.fail("phone", "phone must be a valid phone number")
		return ""
	}
	return phone
}

// website accepts bare hosts ("acme.com") by assuming https.
func (c *checker) website() string {
	site := c.str("website")
	if site == "" {
		return ""
	}
	candidate := site
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !strings.Contains(u.Hostname(), ".") || strings.ContainsAny(u.Host, " \t") {
		c.fail("website", "website must be a valid URL")
		return ""
	}
	if len(candidate) > ShortFieldMax*2 {
		c.fail("website", "website must be at most %d characters", ShortFieldMax*2)
		return ""
	}
	return candidate
}

func (c *checker) optional(field string, max int) string {
	v := c.str(field)
	if v != "" && utf8.RuneCountInString(v) > max {
		c.fail(field, "%s must be at most %d characters", field, max)
	}
	return v
}

// Contact validates a contact-form submission.
func Contact(raw map[string]any) Result[domain.ContactInput] {
	c := newChecker(raw)
	in := contactFields(c)
	if svc := c.str("service"); svc != "" {
		if st, ok := ParseService(svc); ok {
			in.Service = st
		} else {
			c.fail("service", "service %q is not a recognised service", svc)
		}
	}
	return Result[domain.ContactInput]{Value: in, Fields: c.fields}
}

// Inquiry validates a submission to the notify-only endpoint, which also
// accepts a "services" list. The first listed service becomes Service when
// none is given explicitly.
func Inquiry(raw map[string]any) Result[domain.ContactInput] {
	r := Contact(raw)
	c := &checker{raw: newChecker(raw).raw, fields: r.Fields}
	if list, ok := c.list("services"); ok {
		seen := make(map[domain.ServiceType]bool)
		for _, s := range list {
			st, ok := ParseService(s)
			if !ok {
				c.fail("services", "service %q is not a recognised service", s)
				continue
			}
			if !seen[st] {
				seen[st] = true
				r.Value.Services = append(r.Value.Services, st)
			}
		}
	}
	if r.Value.Service == "" && len(r.Value.Services) > 0 {
		r.Value.Service = r.Value.Services[0]
	}
	r.Fields = c.fields
	return r
}

func contactFields(c *checker) domain.ContactInput {
	in := domain.ContactInput{
		Name:    c.str("name"),
		Email:   c.email(true),
		Message: c.str("message"),
	}
	if in.Name == "" && !c.failed("name") {
		c.fail("name", "name is required")
	} else if in.Name != "" {
		c.length("name", in.Name, NameMin, NameMax)
	}
	if in.Message == "" && !c.failed("message") {
		c.fail("message", "message is required")
	} else if in.Message != "" {
		c.length("message", in.Message, MessageMin, MessageMax)
	}
	in.Phone = c.phone()
	in.Website = c.website()
	in.Company = c.optional("company", ShortFieldMax)
	in.Budget = c.optional("budget", ShortFieldMax)
	in.Timeline = c.optional("timeline", ShortFieldMax)
	return in
}

// Subscription validates a newsletter sign-up: only email is required.
func Subscription(raw map[string]any) Result[domain.SubscriptionInput] {
	c := newChecker(raw)
	in := domain.SubscriptionInput{
		Email:  c.email(true),
		Source: c.optional("source", TagMax),
		Tags:   c.tags("tags"),
	}
	in.Preferences = c.preferences()
	return Result[domain.SubscriptionInput]{Value: in, Fields: c.fields}
}

// PreferenceUpdate validates a change to an existing subscriber. At least one
// of preferences or tags must be supplied.
func PreferenceUpdate(raw map[string]any) Result[domain.PreferenceUpdate] {
	c := newChecker(raw)
	in := domain.PreferenceUpdate{
		Email: c.email(true),
		Tags:  c.tags("tags"),
	}
	in.Preferences = c.preferences()
	if len(c.fields) == 0 && in.Preferences.Empty() && in.Tags == nil {
		c.fail("preferences", "preferences or tags must be provided")
	}
	return Result[domain.PreferenceUpdate]{Value: in, Fields: c.fields}
}

func (c *checker) tags(field string) []string {
	list, ok := c.list(field)
	if !ok {
		return nil
	}
	if len(list) > MaxTags {
		c.fail(field, "at most %d %s are allowed", MaxTags, field)
		return nil
	}
	for _, t := range list {
		if utf8.RuneCountInString(t) > TagMax {
			c.fail(field, "each tag must be at most %d characters", TagMax)
			return nil
		}
	}
	return domain.MergeTags(list)
}

func (c *checker) preferences() domain.PreferencePatch {
	var patch domain.PreferencePatch
	v, ok := c.raw["preferences"]
	if !ok || v == nil {
		return patch
	}
	obj, ok := v.(map[string]any)
	if !ok {
		c.fail("preferences", "preferences must be an object")
		return patch
	}
	sub := &checker{raw: obj}
	if f := strings.ToLower(sub.str("frequency")); f != "" {
		freq := domain.Frequency(f)
		if freq.Valid() {
			patch.Frequency = &freq
		} else {
			sub.fail("frequency", "frequency must be one of daily, weekly, monthly")
		}
	}
	if f := strings.ToLower(sub.str("format")); f != "" {
		format := domain.Format(f)
		if format.Valid() {
			patch.Format = &format
		} else {
			sub.fail("format", "format must be html or text")
		}
	}
	if cats, ok := sub.list("categories"); ok {
		patch.Categories = domain.MergeTags(cats)
	}
	for _, f := range sub.fields {
		f.Field = "preferences." + f.Field
		c.fields = append(c.fields, f)
	}
	return patch
}

// StatusUpdate validates the admin status change. An unknown status yields an
// invalid-status error rather than a generic validation error.
func StatusUpdate(raw map[string]any) (domain.StatusUpdate, error) {
	c := newChecker(raw)
	up := domain.StatusUpdate{ID: c.str("id")}
	if up.ID == "" && !c.failed("id") {
		c.fail("id", "id is required")
	} else if _, err := uuid.Parse(up.ID); up.ID != "" && err != nil {
		c.fail("id", "id is not a valid record id")
	}
	status := strings.ToLower(c.str("status"))
	if status == "" && !c.failed("status") {
		c.fail("status", "status is required")
	}
	if _, ok := c.raw["notes"]; ok {
		notes := c.optional("notes", NotesMax)
		up.Notes = &notes
	}
	if len(c.fields) > 0 {
		return up, domain.ValidationError(c.fields...)
	}
	up.Status = domain.ContactStatus(status)
	if !up.Status.Valid() {
		return up, domain.InvalidStatusError(status)
	}
	return up, nil
}
