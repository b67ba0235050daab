// Package contact implements the lead store: persisting contact-form
// submissions with duplicate suppression and the admin status workflow.
//
// The service layer contains the business rules and depends on the
// Repository interface defined in repository.go. It never imports net/http
// or database/sql directly. Every fault crossing its boundary is a
// *domain.Error.
package contact
