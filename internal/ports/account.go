package ports

import "context"

// AccountPort is the capability onboarding needs to write profile fields.
type AccountPort interface {
	// UpdateProfile applies username and display name to the given account.
	UpdateProfile(ctx context.Context, userID, username, displayName string) error
}
