package app

import (
	"fmt"

	"roostdb/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	cfg := eff.Config

	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, ROOSTDB_DB_PATH env, or storage.db_path in config")
	}
	if cfg.Account.UserID <= 0 {
		return fmt.Errorf("account.user_id is required: the store is scoped to one signed-in user")
	}

	// remote credentials come as a full OAuth 1.0a set or not at all
	r := cfg.Remote
	set := 0
	for _, v := range []string{r.ConsumerKey, r.ConsumerSecret, r.AccessToken, r.AccessSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 4 {
		return fmt.Errorf("incomplete remote credentials: consumer_key, consumer_secret, access_token and access_secret must all be set together")
	}

	switch cfg.Server.Actions.Transport {
	case "", "std", "fast":
	default:
		return fmt.Errorf("server.actions.transport must be \"std\" or \"fast\", got %q", cfg.Server.Actions.Transport)
	}
	if p := cfg.Server.Actions.Port; p < 0 || p > 65535 {
		return fmt.Errorf("server.actions.port out of range: %d", p)
	}
	if p := cfg.Server.Port; p < 0 || p > 65535 {
		return fmt.Errorf("server.port out of range: %d", p)
	}

	if cfg.Replies.PageSize < 0 || cfg.Replies.PageSize > 100 {
		return fmt.Errorf("replies.page_size must be between 1 and 100 (the search endpoint maximum), got %d", cfg.Replies.PageSize)
	}

	return nil
}
