package banner

import (
	"fmt"
	"strings"

	"roostdb/pkg/config"
)

const banner = `
██████╗  ██████╗  ██████╗ ███████╗████████╗    ██████╗ ██████╗
██╔══██╗██╔═══██╗██╔═══██╗██╔════╝╚══██╔══╝    ██╔══██╗██╔══██╗
██████╔╝██║   ██║██║   ██║███████╗   ██║       ██║  ██║██████╔╝
██╔══██╗██║   ██║██║   ██║╚════██║   ██║       ██║  ██║██╔══██╗
██║  ██║╚██████╔╝╚██████╔╝███████║   ██║       ██████╔╝██████╔╝
╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚══════╝   ╚═╝       ╚═════╝ ╚═════╝
`

// PrintWithEff prints the banner plus a startup checklist derived from
// the effective config.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/timelines/{home|user} - Cached timeline, newest first")
	fmt.Println("POST /v1/posts/{id}/{favorite|unfavorite|retweet|unretweet|translate}")
	fmt.Println("GET  /v1/posts/{id}/replies - Walk the reply thread")
	fmt.Println("GET  /v1/events - SSE change and alert stream")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://%s/v1/timelines/home?limit=20'\n", addr)
	fmt.Printf("curl -X POST 'http://%s/v1/posts/123/favorite?wait=1'\n", addr)

	fmt.Println("\n== Checklist ==================================================")
	cfg := eff.Config

	if cfg != nil && cfg.Account.UserID > 0 {
		fmt.Printf("- Account: user %d", cfg.Account.UserID)
		if cfg.Account.Handle != "" {
			fmt.Printf(" (@%s)", cfg.Account.Handle)
		}
		fmt.Println()
	} else {
		fmt.Println("- Account: MISSING (set account.user_id; records are scoped per user)")
	}

	creds := cfg != nil &&
		strings.TrimSpace(cfg.Remote.ConsumerKey) != "" &&
		strings.TrimSpace(cfg.Remote.AccessToken) != ""
	if creds {
		fmt.Println("- Remote credentials: OK")
	} else {
		fmt.Println("- Remote credentials: MISSING (actions and refresh will fail)")
	}

	if cfg != nil && strings.TrimSpace(cfg.Security.APIToken) != "" {
		fmt.Println("- API token: set")
	} else {
		fmt.Println("- API token: unset (fine on loopback; set one before exposing the port)")
	}

	if cfg != nil && strings.TrimSpace(cfg.Translate.Endpoint) != "" {
		fmt.Printf("- Translation: %s\n", cfg.Translate.Endpoint)
	} else {
		fmt.Println("- Translation: disabled")
	}

	retEnabled := false
	retInfo := ""
	if cfg != nil {
		retEnabled = cfg.Retention.Enabled
		if retEnabled {
			if cfg.Retention.Cron != "" {
				retInfo = "cron=" + cfg.Retention.Cron
			} else if cfg.Retention.Period > 0 {
				retInfo = "period=" + cfg.Retention.Period.Duration().String()
			}
		}
	}
	if retEnabled {
		if retInfo != "" {
			fmt.Printf("- Retention: enabled (%s)\n", retInfo)
		} else {
			fmt.Println("- Retention: enabled")
		}
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
