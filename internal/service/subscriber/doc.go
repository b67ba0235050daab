// Package subscriber implements the newsletter store: one record per email,
// reactivation of unsubscribed addresses, preference updates and soft
// unsubscribe. Every fault crossing its boundary is a *domain.Error.
package subscriber
