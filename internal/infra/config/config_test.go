package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_OWNER_ID", "42")
	cfg := Load()
	if cfg.Transport != "discord" {
		t.Fatalf("ожидали discord по умолчанию, получили %q", cfg.Transport)
	}
	if cfg.Limits.CommandCooldown != 3*time.Second || cfg.Limits.RecsCooldown != time.Minute {
		t.Fatalf("неожиданные кулдауны: %v / %v", cfg.Limits.CommandCooldown, cfg.Limits.RecsCooldown)
	}
	if cfg.Limits.FullParseThreshold != 500 || cfg.Limits.PageSize != 10 {
		t.Fatalf("неожиданные лимиты: %+v", cfg.Limits)
	}
	if cfg.Discord.DefaultPrefix != "!" {
		t.Fatalf("неожиданный префикс: %q", cfg.Discord.DefaultPrefix)
	}
	if cfg.OwnerID() != "42" {
		t.Fatalf("неожиданный владелец: %q", cfg.OwnerID())
	}
}

func TestOwnerIDFollowsTransport(t *testing.T) {
	t.Setenv("BOT_TRANSPORT", "telegram")
	t.Setenv("TG_OWNER_ID", "7")
	t.Setenv("DISCORD_OWNER_ID", "42")
	if got := Load().OwnerID(); got != "7" {
		t.Fatalf("ожидали владельца telegram, получили %q", got)
	}
}
