// internal/domain/models/status.go
package models

// Publication statuses used by tours, blog posts and events.
const (
	StatusDraft     = "DRAFT"
	StatusPublished = "PUBLISHED"
	StatusArchived  = "ARCHIVED"
)

// Activation statuses used by categories and destinations.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// PublicationStatuses returns the statuses a publishable entity may take.
func PublicationStatuses() []string {
	return []string{StatusDraft, StatusPublished, StatusArchived}
}

// ActivationStatuses returns the statuses an activatable entity may take.
func ActivationStatuses() []string {
	return []string{StatusActive, StatusInactive}
}

// IsPublicationStatus reports whether s is DRAFT, PUBLISHED or ARCHIVED.
func IsPublicationStatus(s string) bool {
	return contains(PublicationStatuses(), s)
}

// IsActivationStatus reports whether s is ACTIVE or INACTIVE.
func IsActivationStatus(s string) bool {
	return contains(ActivationStatuses(), s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
