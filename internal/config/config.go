package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// GameConfig holds process-wide tunables for the Bluff Royal module. It is
// loaded once at module init from a JSON file; individual fields can then be
// overridden through the Nakama runtime environment.
type GameConfig struct {
	// ReactionWindowSeconds is how long opponents get to contest a claim.
	ReactionWindowSeconds int `json:"reaction_window_seconds" env:"bluffroyal_reaction_window_sec"`

	BotsEnabled             bool    `json:"bots_enabled" env:"bluffroyal_bots_enabled"`
	BotMinDelaySeconds      int     `json:"bot_min_delay_seconds" env:"bluffroyal_bot_min_delay_sec"`
	BotMaxDelaySeconds      int     `json:"bot_max_delay_seconds" env:"bluffroyal_bot_max_delay_sec"`
	BotAutoFillDelaySeconds int     `json:"bot_auto_fill_delay_seconds" env:"bluffroyal_bot_auto_fill_delay_sec"`
	BotChallengeChance      float64 `json:"bot_challenge_chance" env:"bluffroyal_bot_challenge_chance"`
	BotBluffChance          float64 `json:"bot_bluff_chance" env:"bluffroyal_bot_bluff_chance"`

	InviteTokenTTLSeconds int `json:"invite_token_ttl_seconds" env:"bluffroyal_invite_token_ttl_sec"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

func defaults() *GameConfig {
	return &GameConfig{
		ReactionWindowSeconds:   3,
		BotsEnabled:             false,
		BotMinDelaySeconds:      1,
		BotMaxDelaySeconds:      3,
		BotAutoFillDelaySeconds: 5,
		BotChallengeChance:      0.25,
		BotBluffChance:          0.3,
		InviteTokenTTLSeconds:   300,
	}
}

func parseConfig(data []byte) (*GameConfig, error) {
	c := defaults()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return c, nil
}

// applyEnv overrides fields from the given environment map (the Nakama
// runtime env, not the process env).
func applyEnv(c *GameConfig, environment map[string]string) error {
	return env.ParseWithOptions(c, env.Options{Environment: environment})
}

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}
		cfg, loadErr = parseConfig(data)
	})
	return loadErr
}

// ApplyEnvOverrides layers the Nakama runtime environment on top of whatever
// was loaded from file (or the defaults when no file was loaded).
func ApplyEnvOverrides(environment map[string]string) error {
	if cfg == nil {
		cfg = defaults()
	}
	return applyEnv(cfg, environment)
}

// GetGameConfig returns the global game configuration, falling back to
// defaults when nothing was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return defaults()
	}
	return cfg
}

// ReactionWindow returns the reaction window as a duration.
func ReactionWindow() time.Duration {
	return time.Duration(GetGameConfig().ReactionWindowSeconds) * time.Second
}

// InviteTokenTTL returns the invite token lifetime as a duration.
func InviteTokenTTL() time.Duration {
	return time.Duration(GetGameConfig().InviteTokenTTLSeconds) * time.Second
}
