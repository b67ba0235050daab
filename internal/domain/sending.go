package domain

import "strings"

// UnknownClientValue replaces client metadata the request did not carry.
const UnknownClientValue = "unknown"

// ClientInfo is best-effort request metadata stored with a record.
type ClientInfo struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Normalized returns c with blanks replaced by UnknownClientValue.
func (c ClientInfo) Normalized() ClientInfo {
	out := ClientInfo{
		IPAddress: strings.TrimSpace(c.IPAddress),
		UserAgent: strings.TrimSpace(c.UserAgent),
	}
	if out.IPAddress == "" {
		out.IPAddress = UnknownClientValue
	}
	if out.UserAgent == "" {
		out.UserAgent = UnknownClientValue
	}
	return out
}

// EmailMessage is a fully rendered message ready for a mail sender.
type EmailMessage struct {
	To          []string          `json:"to"`
	FromEmail   string            `json:"from_email"`
	FromName    string            `json:"from_name"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content"`
	TextContent string            `json:"text_content,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}
