package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, 7*24*time.Hour, cfg.Substitution.ExpireAfter)
	require.Equal(t, 0.85, cfg.Substitution.AIAcceptThreshold)
	require.Equal(t, 0.85, cfg.Substitution.FuzzyThreshold)
	require.Contains(t, cfg.Substitution.HonorificPrefixes, "ครู")
	require.Equal(t, 10*time.Second, cfg.NameMatch.Timeout)
	require.Equal(t, 0.60, cfg.NameMatch.MinConfidence)
	require.Equal(t, 24*time.Hour, cfg.NameMatch.CacheTTL)
	require.Equal(t, "0 23 * * *", cfg.Jobs.ExpireCron)
	require.Empty(t, cfg.Jobs.DailyProcessCron)
	require.False(t, cfg.Database.AutoMigrate)
	require.False(t, cfg.Telegram.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ROSTER_FILE", "/etc/roster.yaml")
	t.Setenv("LAST_RESORT_TEACHERS", "T006, T010 ,T018")
	t.Setenv("PENDING_EXPIRE_AFTER", "72h")
	t.Setenv("NAME_MATCH_TIMEOUT", "bogus")
	t.Setenv("NAME_MATCH_MIN_CONFIDENCE", "1.7")
	t.Setenv("FUZZY_MATCH_THRESHOLD", "0.9")
	t.Setenv("TELEGRAM_BOT_ENABLED", "true")
	t.Setenv("TELEGRAM_ADMIN_IDS", "111, abc, 222")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("DAILY_PROCESS_CRON", "0 7 * * 1-5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/etc/roster.yaml", cfg.Substitution.RosterFile)
	require.Equal(t, []string{"T006", "T010", "T018"}, cfg.Substitution.LastResortIDs)
	require.Equal(t, 72*time.Hour, cfg.Substitution.ExpireAfter)
	require.Equal(t, 10*time.Second, cfg.NameMatch.Timeout)
	require.Equal(t, 0.60, cfg.NameMatch.MinConfidence)
	require.Equal(t, 0.9, cfg.Substitution.FuzzyThreshold)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, []int64{111, 222}, cfg.Telegram.AdminIDs)
	require.True(t, cfg.Database.AutoMigrate)
	require.Equal(t, "0 7 * * 1-5", cfg.Jobs.DailyProcessCron)
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	loc := cfg.Location()
	_, offset := time.Date(2025, 11, 28, 0, 0, 0, 0, loc).Zone()
	require.Equal(t, 7*60*60, offset)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
