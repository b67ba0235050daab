package notify

import (
	"fmt"

	"github.com/osteele/liquid"
)

// Optional values are left out of the bindings entirely when empty, so the
// {% if %} guards below drop the whole row.

const alertSubject = `{% if inquiry %}Project inquiry{% else %}New lead{% endif %} [{{ priority | upcase }}] from {{ name }}{% if company %} ({{ company }}){% endif %}`

const alertHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
<h2>{% if inquiry %}Project inquiry{% else %}New contact form submission{% endif %}</h2>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><th align="left">Name</th><td>{{ name | escape }}</td></tr>
<tr><th align="left">Email</th><td><a href="mailto:{{ email | escape }}">{{ email | escape }}</a></td></tr>
{% if phone %}<tr><th align="left">Phone</th><td>{{ phone | escape }}</td></tr>
{% endif %}{% if company %}<tr><th align="left">Company</th><td>{{ company | escape }}</td></tr>
{% endif %}{% if website %}<tr><th align="left">Website</th><td><a href="{{ website | escape }}">{{ website | escape }}</a></td></tr>
{% endif %}{% if services %}<tr><th align="left">Services</th><td>{{ services | join: ", " | escape }}</td></tr>
{% endif %}{% if budget %}<tr><th align="left">Budget</th><td>{{ budget | escape }}</td></tr>
{% endif %}{% if timeline %}<tr><th align="left">Timeline</th><td>{{ timeline | escape }}</td></tr>
{% endif %}<tr><th align="left">Priority</th><td>{{ priority }}</td></tr>
<tr><th align="left">Lead score</th><td>{{ lead_score }}</td></tr>
{% if tags %}<tr><th align="left">Tags</th><td>{{ tags | join: ", " }}</td></tr>
{% endif %}{% if contact_id %}<tr><th align="left">Record</th><td>{{ contact_id }}</td></tr>
{% endif %}</table>
<h3>Message</h3>
<p style="white-space: pre-wrap;">{{ message | escape }}</p>
{% if submitted_at %}<p style="color: #888; font-size: 12px;">Submitted {{ submitted_at }}</p>{% endif %}
</body>
</html>
`

const alertText = `{% if inquiry %}Project inquiry{% else %}New contact form submission{% endif %}

Name: {{ name }}
Email: {{ email }}
{% if phone %}Phone: {{ phone }}
{% endif %}{% if company %}Company: {{ company }}
{% endif %}{% if website %}Website: {{ website }}
{% endif %}{% if services %}Services: {{ services | join: ", " }}
{% endif %}{% if budget %}Budget: {{ budget }}
{% endif %}{% if timeline %}Timeline: {{ timeline }}
{% endif %}Priority: {{ priority }}
Lead score: {{ lead_score }}
{% if tags %}Tags: {{ tags | join: ", " }}
{% endif %}
{{ message }}
`

const welcomeSubject = `Welcome to the {{ brand }} newsletter`

const welcomeHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
<h2>{% if reactivated %}Welcome back!{% else %}Thanks for subscribing!{% endif %}</h2>
<p>You will receive {{ frequency }} updates from {{ brand }}{% if categories %} about {{ categories | join: ", " }}{% endif %}.</p>
<p>To change how often we write, reply to this email or update your preferences on our site.</p>
<p style="color: #888; font-size: 12px;">You are receiving this because {{ email | escape }} subscribed to the {{ brand }} newsletter.</p>
</body>
</html>
`

const welcomeText = `{% if reactivated %}Welcome back!{% else %}Thanks for subscribing!{% endif %}

You will receive {{ frequency }} updates from {{ brand }}{% if categories %} about {{ categories | join: ", " }}{% endif %}.

To change how often we write, reply to this email or update your preferences on our site.

You are receiving this because {{ email }} subscribed to the {{ brand }} newsletter.
`

// templateSet holds one message's parsed parts. HTML or text may be nil.
type templateSet struct {
	subject *liquid.Template
	html    *liquid.Template
	text    *liquid.Template
}

type rendered struct {
	subject, html, text string
}

func parseSet(engine *liquid.Engine, subject, html, text string) (*templateSet, error) {
	var ts templateSet
	var err error
	if ts.subject, err = engine.ParseString(subject); err != nil {
		return nil, fmt.Errorf("parse subject: %w", err)
	}
	if ts.html, err = engine.ParseString(html); err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if ts.text, err = engine.ParseString(text); err != nil {
		return nil, fmt.Errorf("parse text: %w", err)
	}
	return &ts, nil
}

func (ts *templateSet) render(b map[string]any) (*rendered, error) {
	var out rendered
	var err error
	if out.subject, err = ts.subject.RenderString(b); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if out.html, err = ts.html.RenderString(b); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if out.text, err = ts.text.RenderString(b); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	return &out, nil
}
