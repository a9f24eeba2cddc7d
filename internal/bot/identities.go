package bot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// botUserIDPrefix marks engine player ids that belong to bots. Bot ids never
// collide with Nakama user ids, which are UUIDs.
const botUserIDPrefix = "bot-"

// Identity is a bot's stable user id and presentation name.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

var (
	identityMu sync.RWMutex
	identities = defaultIdentities()
)

func defaultIdentities() []Identity {
	return []Identity{
		{UserID: "bot-ace", Username: "Ace"},
		{UserID: "bot-duchess", Username: "Duchess"},
		{UserID: "bot-joker", Username: "Joker"},
		{UserID: "bot-baron", Username: "Baron"},
		{UserID: "bot-queenie", Username: "Queenie"},
		{UserID: "bot-knave", Username: "Knave"},
		{UserID: "bot-countess", Username: "Countess"},
		{UserID: "bot-marquis", Username: "Marquis"},
	}
}

// LoadIdentities replaces the built-in identity pool from a JSON file. The
// built-ins stay in place when the file is missing or malformed.
func LoadIdentities(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bot identities: %w", err)
	}

	var loaded []Identity
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal bot identities: %w", err)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("bot identities file %s is empty", path)
	}
	for _, id := range loaded {
		if !IsBot(id.UserID) {
			return fmt.Errorf("bot identity %q must use the %q prefix", id.UserID, botUserIDPrefix)
		}
	}

	identityMu.Lock()
	identities = loaded
	identityMu.Unlock()
	return nil
}

// GetBotIdentity returns the identity for the given pool index, wrapping
// around when the index exceeds the pool.
func GetBotIdentity(i int) Identity {
	identityMu.RLock()
	defer identityMu.RUnlock()
	if i < 0 {
		i = -i
	}
	return identities[i%len(identities)]
}

// GetBotUsername resolves a bot user id to its display name, or "" for
// unknown ids.
func GetBotUsername(userID string) string {
	identityMu.RLock()
	defer identityMu.RUnlock()
	for _, id := range identities {
		if id.UserID == userID {
			return id.Username
		}
	}
	return ""
}

// IsBot reports whether the given user id belongs to a bot.
func IsBot(userID string) bool {
	return strings.HasPrefix(userID, botUserIDPrefix)
}
