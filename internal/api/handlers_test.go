package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbrand/leadintake/internal/config"
	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/notify"
	"github.com/jbrand/leadintake/internal/repository/memory"
	"github.com/jbrand/leadintake/internal/repository/postgres"
	"github.com/jbrand/leadintake/internal/service/contact"
	"github.com/jbrand/leadintake/internal/service/subscriber"
)

type testEnv struct {
	router      http.Handler
	handlers    *Handlers
	contacts    *memory.ContactRepo
	subscribers *memory.SubscriberRepo
	subSvc      *subscriber.Service
}

type envOptions struct {
	mode     config.Mode
	mailer   notify.Mailer
	archiver Archiver
	noDB     bool
}

func newEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	if o.mode == "" {
		o.mode = config.ModeDevelopment
	}
	d, err := notify.NewDispatcher(notify.Options{
		Mode:    o.mode,
		From:    "hello@jbrand.example",
		AlertTo: []string{"sales@jbrand.example"},
	}, o.mailer)
	require.NoError(t, err)

	env := &testEnv{
		contacts:    memory.NewContactRepo(),
		subscribers: memory.NewSubscriberRepo(),
	}
	var (
		contactRepo    contact.Repository    = env.contacts
		subscriberRepo subscriber.Repository = env.subscribers
	)
	if o.noDB {
		h := postgres.NewHandle("")
		contactRepo = postgres.NewContactRepo(h.DB)
		subscriberRepo = postgres.NewSubscriberRepo(h.DB)
	}
	env.subSvc = subscriber.NewService(subscriberRepo)
	env.handlers = NewHandlers(Deps{
		Mode:        o.mode,
		Contacts:    contact.NewService(contactRepo),
		Subscribers: env.subSvc,
		Notifier:    d,
		Archiver:    o.archiver,
	})
	health := NewHealthChecker(HealthDeps{Mode: string(o.mode), MailStatus: d.Status})
	env.router = SetupRoutes(env.handlers, health, nil)
	return env
}

type response struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Details     map[string]any      `json:"details"`
	Error       string              `json:"error"`
	Fields      []domain.FieldError `json:"fields"`
	ErrorDetail string              `json:"error_detail"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

const janeBody = `{"name":"Jane Doe","email":"jane@x.com","company":"Acme","phone":"+15551234567",
	"message":"We need a full rebrand within Q3, budget is flexible."}`

func tagsOf(details map[string]any) []string {
	var out []string
	for _, v := range details["tags"].([]any) {
		out = append(out, v.(string))
	}
	return out
}

func TestCreateContact_HighPriorityLead(t *testing.T) {
	env := newEnv(t, envOptions{})

	code, resp := env.do(t, http.MethodPost, "/contact", janeBody)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "high", resp.Details["priority"])
	assert.Subset(t, tagsOf(resp.Details), []string{"business", "phone-provided", "priority-high"})
	assert.GreaterOrEqual(t, resp.Details["leadScore"].(float64), 70.0)
	assert.Equal(t, false, resp.Details["isDuplicate"])
	assert.Regexp(t, `^\d+ms$`, resp.Details["processingTime"])
	assert.NotEmpty(t, resp.Details["id"])

	notification := resp.Details["notification"].(map[string]any)
	assert.Equal(t, true, notification["sent"])
	assert.Equal(t, "development", notification["mode"])
}

func TestCreateContact_DuplicateWithinWindow(t *testing.T) {
	env := newEnv(t, envOptions{})

	_, first := env.do(t, http.MethodPost, "/contact", janeBody)
	code, second := env.do(t, http.MethodPost, "/contact", strings.Replace(janeBody, "jane@x.com", "JANE@x.com", 1))

	require.Equal(t, http.StatusOK, code)
	assert.True(t, second.Success)
	assert.Equal(t, false, first.Details["isDuplicate"])
	assert.Equal(t, true, second.Details["isDuplicate"])
	assert.Equal(t, first.Details["id"], second.Details["id"])
	assert.Nil(t, second.Details["notification"])
	assert.Equal(t, 1, env.contacts.Len())
}

func TestCreateContact_ValidationErrors(t *testing.T) {
	env := newEnv(t, envOptions{})

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"short message", `{"name":"Jane","email":"jane@x.com","message":"too short"}`, "message"},
		{"long message", `{"name":"Jane","email":"jane@x.com","message":"` + strings.Repeat("a", 2001) + `"}`, "message"},
		{"bad email", `{"name":"Jane","email":"jane@","message":"A long enough message."}`, "email"},
		{"bad phone", `{"name":"Jane","email":"jane@x.com","phone":"call me maybe","message":"A long enough message."}`, "phone"},
		{"unknown service", `{"name":"Jane","email":"jane@x.com","service":"catering","message":"A long enough message."}`, "service"},
		{"malformed json", `{"name":`, "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := env.do(t, http.MethodPost, "/contact", tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, resp.Success)
			assert.Equal(t, "validation_error", resp.Error)
			require.NotEmpty(t, resp.Fields)
			assert.Equal(t, tc.field, resp.Fields[0].Field)
			assert.NotEmpty(t, resp.Message)
		})
	}
	assert.Equal(t, 0, env.contacts.Len())
}

func TestCreateContact_StorageUnavailable(t *testing.T) {
	env := newEnv(t, envOptions{noDB: true})

	code, resp := env.do(t, http.MethodPost, "/contact", janeBody)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "storage_error", resp.Error)
	assert.Contains(t, resp.ErrorDetail, "database not configured")

	prod := newEnv(t, envOptions{noDB: true, mode: config.ModeProduction, mailer: &recordingMailer{}})
	code, resp = prod.do(t, http.MethodPost, "/subscribe", `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Empty(t, resp.ErrorDetail)
	assert.NotContains(t, resp.Message, "database")
}

type recordingArchiver struct {
	mu   sync.Mutex
	got  []*domain.Contact
	fail bool
}

func (a *recordingArchiver) Archive(_ context.Context, c *domain.Contact) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, c)
	if a.fail {
		return errors.New("AccessDenied")
	}
	return nil
}

func TestCreateContact_ArchivesNewLeads(t *testing.T) {
	arch := &recordingArchiver{fail: true}
	env := newEnv(t, envOptions{archiver: arch})

	code, resp := env.do(t, http.MethodPost, "/contact", janeBody)
	require.Equal(t, http.StatusOK, code, "archive failure must not affect the response")
	env.do(t, http.MethodPost, "/contact", janeBody)
	env.handlers.Wait()

	require.Len(t, arch.got, 1, "duplicates are not archived")
	assert.Equal(t, resp.Details["id"], arch.got[0].ID)
}

func TestContactStats(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.do(t, http.MethodPost, "/contact", janeBody)

	req := httptest.NewRequest(http.MethodGet, "/contact", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string              `json:"status"`
		Statistics domain.ContactStats `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.Statistics.Total)
	assert.Equal(t, 1, body.Statistics.ByPriority["high"])
}

func TestUpdateContactStatus(t *testing.T) {
	env := newEnv(t, envOptions{})
	_, created := env.do(t, http.MethodPost, "/contact", janeBody)
	id := created.Details["id"].(string)

	code, resp := env.do(t, http.MethodPut, "/contact", `{"id":"`+id+`","status":"Qualified","notes":"budget confirmed"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "qualified", resp.Details["status"])
	assert.Equal(t, "budget confirmed", resp.Details["notes"])

	code, resp = env.do(t, http.MethodPut, "/contact", `{"id":"`+id+`","status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_status", resp.Error)

	code, _ = env.do(t, http.MethodPut, "/contact", `{"id":"not-a-uuid","status":"closed"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = env.do(t, http.MethodPut, "/contact", `{"id":"8c1f3a2e-4b7d-4c1e-9f0a-1b2c3d4e5f60","status":"closed"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp.Error)
}

func TestSubscribe_CaseInsensitiveExisting(t *testing.T) {
	env := newEnv(t, envOptions{})

	code, first := env.do(t, http.MethodPost, "/subscribe", `{"email":"a@b.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, first.Details["isExisting"])
	assert.Equal(t, true, first.Details["welcomeEmailSent"])
	assert.Equal(t, float64(domain.DefaultEngagementScore), first.Details["engagementScore"])
	assert.Contains(t, tagsOf(first.Details), "mobile")

	code, second := env.do(t, http.MethodPost, "/subscribe", `{"email":"A@B.com","tags":["footer-form"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, second.Success)
	assert.Equal(t, true, second.Details["isExisting"])
	assert.Equal(t, false, second.Details["welcomeEmailSent"])
	assert.Equal(t, first.Details["id"], second.Details["id"])
	assert.Contains(t, tagsOf(second.Details), "footer-form")

	assert.Equal(t, 1, env.subscribers.Len())

	s, err := env.subSvc.Get(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 1, s.EmailsSent, "only the first subscription sends a welcome email")
}

func TestSubscribe_ReactivatesSameRecord(t *testing.T) {
	env := newEnv(t, envOptions{})

	_, first := env.do(t, http.MethodPost, "/subscribe", `{"email":"sam@example.com","source":"footer"}`)

	code, unsub := env.do(t, http.MethodDelete, "/subscribe?email=Sam@Example.com", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sam@example.com", unsub.Details["email"])
	assert.NotNil(t, unsub.Details["unsubscribedAt"])

	code, again := env.do(t, http.MethodPost, "/subscribe", `{"email":"sam@example.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.Details["id"], again.Details["id"])
	assert.Equal(t, true, again.Details["reactivated"])
	assert.Equal(t, true, again.Details["welcomeEmailSent"])
	assert.Equal(t, 1, env.subscribers.Len())
}

func TestSubscribe_Validation(t *testing.T) {
	env := newEnv(t, envOptions{})

	code, resp := env.do(t, http.MethodPost, "/subscribe", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email", resp.Fields[0].Field)

	code, resp = env.do(t, http.MethodPost, "/subscribe", `{"email":"a@b.com","preferences":{"frequency":"hourly"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "preferences.frequency", resp.Fields[0].Field)
}

func TestSubscribe_WelcomeFailureKeepsSubscription(t *testing.T) {
	env := newEnv(t, envOptions{mode: config.ModeProduction, mailer: &recordingMailer{err: errors.New("throttled")}})

	code, resp := env.do(t, http.MethodPost, "/subscribe", `{"email":"a@b.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, false, resp.Details["welcomeEmailSent"])
	assert.Equal(t, "mail_send_error", resp.Details["welcomeEmailError"])
	assert.Equal(t, 1, env.subscribers.Len())
}

func TestUnsubscribe_Errors(t *testing.T) {
	env := newEnv(t, envOptions{})

	code, resp := env.do(t, http.MethodDelete, "/subscribe", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "email is required", resp.Message)

	code, _ = env.do(t, http.MethodDelete, "/subscribe?email=bad", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = env.do(t, http.MethodDelete, "/subscribe?email=ghost@example.com", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", resp.Error)
}

func TestUpdatePreferences(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.do(t, http.MethodPost, "/subscribe", `{"email":"a@b.com","tags":["one"]}`)

	code, resp := env.do(t, http.MethodPut, "/subscribe",
		`{"email":"A@b.com","preferences":{"frequency":"monthly"},"tags":["two"]}`)
	require.Equal(t, http.StatusOK, code)
	prefs := resp.Details["preferences"].(map[string]any)
	assert.Equal(t, "monthly", prefs["frequency"])
	assert.Equal(t, "html", prefs["format"])
	assert.Subset(t, tagsOf(resp.Details), []string{"one", "two"})

	code, _ = env.do(t, http.MethodPut, "/subscribe", `{"email":"a@b.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPut, "/subscribe", `{"email":"ghost@b.com","tags":["x"]}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSubscriberStats(t *testing.T) {
	env := newEnv(t, envOptions{})
	env.do(t, http.MethodPost, "/subscribe", `{"email":"a@b.com"}`)
	env.do(t, http.MethodPost, "/subscribe", `{"email":"A@B.com"}`)

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Statistics domain.SubscriberStats `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Statistics.Total)
	assert.Equal(t, 1, body.Statistics.Active)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*domain.EmailMessage
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *domain.EmailMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "ses-1", nil
}

const inquiryBody = `{"name":"Sam","email":"sam@studio.example","services":["video","web"],
	"message":"We are planning a product launch video and a new site."}`

func TestSendInquiry_Development(t *testing.T) {
	env := newEnv(t, envOptions{})

	code, resp := env.do(t, http.MethodPost, "/send", inquiryBody)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "development", resp.Details["mode"])
	assert.NotEmpty(t, resp.Details["emailId"])
	assert.Equal(t, "low", resp.Details["priority"])
	assert.Equal(t, 0, env.contacts.Len(), "inquiries are not stored")
}

func TestSendInquiry_Production(t *testing.T) {
	m := &recordingMailer{}
	env := newEnv(t, envOptions{mode: config.ModeProduction, mailer: m})

	code, resp := env.do(t, http.MethodPost, "/send", inquiryBody)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "production", resp.Details["mode"])
	assert.Equal(t, "ses-1", resp.Details["emailId"])
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].TextContent, "videoProduction, webDevelopment")
}

func TestSendInquiry_MailErrors(t *testing.T) {
	env := newEnv(t, envOptions{mode: config.ModeProduction})
	code, resp := env.do(t, http.MethodPost, "/send", inquiryBody)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "mail_configuration_error", resp.Error)

	env = newEnv(t, envOptions{mode: config.ModeProduction, mailer: &recordingMailer{err: errors.New("throttled")}})
	code, resp = env.do(t, http.MethodPost, "/send", inquiryBody)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "mail_send_error", resp.Error)
	assert.Empty(t, resp.ErrorDetail)

	code, _ = env.do(t, http.MethodPost, "/send", `{"name":"Sam","email":"sam@studio.example","services":["catering"],"message":"long enough message"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouting(t *testing.T) {
	env := newEnv(t, envOptions{})

	code, resp := env.do(t, http.MethodPatch, "/contact", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.False(t, resp.Success)

	code, _ = env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}
