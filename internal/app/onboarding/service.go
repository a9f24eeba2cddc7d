package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"bluffroyal/internal/ports"
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// DisplayName is the generated name assigned to the new account.
	DisplayName string
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	rng      *rand.Rand
}

// NewService constructs an onboarding service with required ports.
// accounts must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		rng:      rng,
	}
}

// OnboardNewUser assigns a friendly display name to a newly created account.
// The update is best-effort: a failed profile write is reported through the
// Result rather than aborting onboarding, since the player can still join
// matches under their device id.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	result := Result{DisplayName: s.generateFriendlyName()}
	if err := s.accounts.UpdateProfile(ctx, userID, result.DisplayName, result.DisplayName); err != nil {
		result.ProfileUpdateErr = err
	}

	return result, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Happy", "Shiny", "Brave", "Clever", "Swift", "Calm", "Mighty", "Witty", "Sly", "Wild"}
	nouns := []string{"Panda", "Tiger", "Eagle", "Dolphin", "Wolf", "Otter", "Falcon", "Bear", "Fox", "Lion"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
