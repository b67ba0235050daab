// Package domain defines the core types of the lead-intake service: contact
// leads, newsletter subscribers and their preferences, outbound email
// messages, and the error taxonomy every layer reports through.
//
// The package imports nothing from internal/. Types carry JSON and db tags
// and small pure helpers (status checks, tag merging, preference patches);
// storage, transport and time-dependent logic live in the packages that use
// them. Handlers map an Error's Kind to an HTTP status, so new failure modes
// should get a Kind here rather than a string match elsewhere.
package domain
