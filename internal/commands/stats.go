package commands

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"go-antiraid/internal/models"
)

const (
	statsIncidentLimit = 100
	suspiciousScore    = 0.6
)

// HostStats holds the host and runtime numbers shown by /stats.
type HostStats struct {
	Available   bool
	Hostname    string
	Uptime      time.Duration
	CPUUsage    float64
	CPUThreads  int
	TotalMemory uint64
	UsedMemory  uint64
	MemPercent  float64
	GoRoutines  int
	HeapAlloc   uint64
}

var botStartTime = time.Now()

// gatherHostStats never fails; fields gopsutil cannot read stay zero.
func gatherHostStats(ctx context.Context) HostStats {
	stats := HostStats{
		CPUThreads: runtime.NumCPU(),
		GoRoutines: runtime.NumGoroutine(),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.HeapAlloc = m.HeapAlloc

	if info, err := host.InfoWithContext(ctx); err == nil {
		stats.Available = true
		stats.Hostname = info.Hostname
		stats.Uptime = time.Duration(info.Uptime) * time.Second
	}

	// Interval 0 compares against the previous call instead of sleeping.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.Available = true
		stats.CPUUsage = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.Available = true
		stats.TotalMemory = vm.Total
		stats.UsedMemory = vm.Used
		stats.MemPercent = vm.UsedPercent
	}

	return stats
}

// statsCommand shows the guild overview, or one member's profile when a
// user option is given.
func (h *Handler) statsCommand(ctx context.Context, guildID uint64, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (*discordgo.MessageEmbed, error) {
	if userID, ok := snowflakeOption(opts, "user"); ok {
		return h.userStats(ctx, guildID, userID)
	}
	return h.serverStats(ctx, guildID)
}

func (h *Handler) serverStats(ctx context.Context, guildID uint64) (*discordgo.MessageEmbed, error) {
	incidents, err := h.store.GetRecentIncidents(ctx, guildID, statsIncidentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents: %w", err)
	}
	forensics, err := h.store.CountForensicEvents(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count forensic events: %w", err)
	}
	catches, err := h.store.CountHoneypotCatches(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to count honeypot catches: %w", err)
	}

	now := h.now()
	day := countSince(incidents, now.Add(-24*time.Hour))
	week := countSince(incidents, now.Add(-7*24*time.Hour))

	raid := h.raids.RaidStatus(guildID)
	risk := "✅ Safe"
	if raid.IsRaid {
		risk = "🚨 Detected"
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "📁 Incidents",
			Value:  fmt.Sprintf("**Last 24h:** `%d`\n**Last 7d:** `%d`", day, week),
			Inline: true,
		},
		{
			Name:   "🔍 Evidence",
			Value:  fmt.Sprintf("**Forensic events:** `%d`\n**Honeypot catches:** `%d`", forensics, catches),
			Inline: true,
		},
		{
			Name:   "🛡️ Raid Risk",
			Value:  fmt.Sprintf("**Threat:** `%.2f`\n**Status:** %s", raid.ThreatScore, risk),
			Inline: false,
		},
	}

	if h.joins != nil && h.behavior != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "🧠 Tracking",
			Value:  fmt.Sprintf("**Join ledgers:** `%d`\n**Behavior profiles:** `%d`", h.joins.GuildCount(), h.behavior.ProfileCount()),
			Inline: true,
		})
	}

	hs := h.hostStats(ctx)
	fields = append(fields, &discordgo.MessageEmbedField{
		Name:   "🖥️ Host",
		Value:  hostSummary(hs),
		Inline: true,
	})

	return &discordgo.MessageEmbed{
		Title:     "📊 Security Statistics",
		Color:     0x3498DB,
		Fields:    fields,
		Footer:    footer(),
		Timestamp: now.Format(time.RFC3339),
	}, nil
}

func (h *Handler) userStats(ctx context.Context, guildID, userID uint64) (*discordgo.MessageEmbed, error) {
	incidents, err := h.store.GetRecentIncidents(ctx, guildID, statsIncidentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents: %w", err)
	}
	profile, err := h.store.GetBehaviorProfile(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load behavior profile: %w", err)
	}

	userIncidents := 0
	for _, inc := range incidents {
		if inc.UserID == userID {
			userIncidents++
		}
	}

	var (
		threat, spam float64
		messages     int
		lastSeen     string
	)
	if profile != nil {
		threat, spam, messages = profile.ThreatScore, profile.SpamScore, profile.MessageCount
		lastSeen = fmt.Sprintf("<t:%d:R>", profile.LastMessageTime.Unix())
	}
	// The live history wins over the stored snapshot when it exists.
	if h.behavior != nil {
		if live := h.behavior.Metrics(guildID, userID); live.MessageCount > 0 {
			threat, spam, messages = live.ThreatScore, live.SpamScore, live.MessageCount
		}
	}
	if lastSeen == "" {
		lastSeen = "never"
	}

	status := "✅ Normal"
	if threat > suspiciousScore {
		status = "⚠️ Suspicious"
	}

	return &discordgo.MessageEmbed{
		Title:       "📊 Member Statistics",
		Description: fmt.Sprintf("<@%d>", userID),
		Color:       0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Incidents", Value: fmt.Sprintf("`%d`", userIncidents), Inline: true},
			{Name: "Honeypot Catches", Value: fmt.Sprintf("`%d`", len(h.honeypot.Catches(guildID, userID))), Inline: true},
			{Name: "Messages Tracked", Value: fmt.Sprintf("`%d`", messages), Inline: true},
			{Name: "Threat Score", Value: fmt.Sprintf("`%.2f`", threat), Inline: true},
			{Name: "Spam Score", Value: fmt.Sprintf("`%.2f`", spam), Inline: true},
			{Name: "Last Message", Value: lastSeen, Inline: true},
			{Name: "Status", Value: status, Inline: false},
		},
		Footer: footer(),
	}, nil
}

func countSince(incidents []*models.Incident, since time.Time) int {
	n := 0
	for _, inc := range incidents {
		if !inc.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

func hostSummary(hs HostStats) string {
	runtimeLine := fmt.Sprintf("**Goroutines:** `%d` · **Heap:** `%s`\n**Bot Uptime:** `%s`",
		hs.GoRoutines, formatBytes(hs.HeapAlloc), formatDuration(time.Since(botStartTime)))
	if !hs.Available {
		return "Host metrics unavailable\n" + runtimeLine
	}
	return fmt.Sprintf("**Host:** `%s` (up `%s`)\n**CPU:** `%.1f%%` of %d threads\n**Memory:** `%s` / `%s` (`%.1f%%`)\n%s",
		hs.Hostname, formatDuration(hs.Uptime),
		hs.CPUUsage, hs.CPUThreads,
		formatBytes(hs.UsedMemory), formatBytes(hs.TotalMemory), hs.MemPercent,
		runtimeLine)
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
