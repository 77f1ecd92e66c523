package detectors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go-antiraid/internal/config"
	"go-antiraid/internal/models"
	"go-antiraid/internal/state"
)

const (
	HiddenChannelSeverity    = 0.8
	FakeCommandSeverity      = 0.7
	SuspiciousTimingSeverity = 0.6
)

type guildTraps struct {
	channels map[uint64]struct{}
	commands []string
}

// TrapSet lists the traps registered for one guild.
type TrapSet struct {
	HiddenChannels []uint64
	FakeCommands   []string
}

// HoneypotRegistry tracks decoy channels and commands per guild and the
// catches they produce per actor. Catches are never evicted.
type HoneypotRegistry struct {
	cfg     *config.Store
	traps   *state.Keyed[state.GuildKey, guildTraps]
	catches *state.Keyed[state.ActorKey, []models.HoneypotCatch]
	now     func() time.Time
}

func NewHoneypotRegistry(cfg *config.Store) *HoneypotRegistry {
	return &HoneypotRegistry{
		cfg:     cfg,
		traps:   state.NewKeyed[state.GuildKey, guildTraps](),
		catches: state.NewKeyed[state.ActorKey, []models.HoneypotCatch](),
		now:     time.Now,
	}
}

func (h *HoneypotRegistry) SetClock(now func() time.Time) {
	h.now = now
}

// RegisterHiddenChannel reports whether the channel was newly added.
func (h *HoneypotRegistry) RegisterHiddenChannel(guildID, channelID uint64) bool {
	added := false
	h.traps.Update(state.GuildKey(guildID), func(t *guildTraps) {
		if t.channels == nil {
			t.channels = make(map[uint64]struct{})
		}
		if _, ok := t.channels[channelID]; !ok {
			t.channels[channelID] = struct{}{}
			added = true
		}
	})
	return added
}

// RegisterFakeCommand stores the prefix lower-cased and reports whether it was newly added.
func (h *HoneypotRegistry) RegisterFakeCommand(guildID uint64, command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return false
	}

	added := false
	h.traps.Update(state.GuildKey(guildID), func(t *guildTraps) {
		for _, c := range t.commands {
			if c == command {
				return
			}
		}
		t.commands = append(t.commands, command)
		added = true
	})
	return added
}

func (h *HoneypotRegistry) UnregisterHiddenChannel(guildID, channelID uint64) bool {
	removed := false
	h.traps.View(state.GuildKey(guildID), func(t *guildTraps) {
		if _, ok := t.channels[channelID]; ok {
			delete(t.channels, channelID)
			removed = true
		}
	})
	return removed
}

func (h *HoneypotRegistry) UnregisterFakeCommand(guildID uint64, command string) bool {
	command = strings.ToLower(strings.TrimSpace(command))
	removed := false
	h.traps.View(state.GuildKey(guildID), func(t *guildTraps) {
		for i, c := range t.commands {
			if c == command {
				t.commands = append(t.commands[:i], t.commands[i+1:]...)
				removed = true
				return
			}
		}
	})
	return removed
}

func (h *HoneypotRegistry) Traps(guildID uint64) TrapSet {
	var set TrapSet
	h.traps.View(state.GuildKey(guildID), func(t *guildTraps) {
		for id := range t.channels {
			set.HiddenChannels = append(set.HiddenChannels, id)
		}
		set.FakeCommands = append(set.FakeCommands, t.commands...)
	})
	sort.Slice(set.HiddenChannels, func(i, j int) bool { return set.HiddenChannels[i] < set.HiddenChannels[j] })
	return set
}

func (h *HoneypotRegistry) CheckHiddenChannel(guildID, channelID, userID uint64) bool {
	_, caught := h.TrapHiddenChannel(guildID, channelID, userID)
	return caught
}

func (h *HoneypotRegistry) CheckFakeCommand(guildID uint64, text string, userID uint64) bool {
	_, caught := h.TrapFakeCommand(guildID, text, userID)
	return caught
}

func (h *HoneypotRegistry) CheckSuspiciousTiming(guildID, userID uint64, reaction time.Duration) bool {
	_, caught := h.TrapSuspiciousTiming(guildID, userID, reaction)
	return caught
}

// TrapHiddenChannel records and returns a catch when channelID is a hidden channel.
func (h *HoneypotRegistry) TrapHiddenChannel(guildID, channelID, userID uint64) (models.HoneypotCatch, bool) {
	hit := false
	h.traps.View(state.GuildKey(guildID), func(t *guildTraps) {
		_, hit = t.channels[channelID]
	})
	if !hit {
		return models.HoneypotCatch{}, false
	}

	return h.record(guildID, userID, models.TrapHiddenChannel, fmt.Sprintf("channel_%d", channelID), HiddenChannelSeverity), true
}

// TrapFakeCommand matches the lower-cased text against registered prefixes in
// registration order; only the first match is recorded.
func (h *HoneypotRegistry) TrapFakeCommand(guildID uint64, text string, userID uint64) (models.HoneypotCatch, bool) {
	lower := strings.ToLower(text)
	matched := ""
	h.traps.View(state.GuildKey(guildID), func(t *guildTraps) {
		for _, c := range t.commands {
			if strings.HasPrefix(lower, c) {
				matched = c
				return
			}
		}
	})
	if matched == "" {
		return models.HoneypotCatch{}, false
	}

	return h.record(guildID, userID, models.TrapFakeCommand, matched, FakeCommandSeverity), true
}

// TrapSuspiciousTiming records a catch when an actor reacts faster than a human could.
func (h *HoneypotRegistry) TrapSuspiciousTiming(guildID, userID uint64, reaction time.Duration) (models.HoneypotCatch, bool) {
	limit := time.Duration(h.cfg.Security().SuspiciousReactionMs) * time.Millisecond
	if reaction < 0 || reaction >= limit {
		return models.HoneypotCatch{}, false
	}

	return h.record(guildID, userID, models.TrapSuspiciousTiming, fmt.Sprintf("reaction_%dms", reaction.Milliseconds()), SuspiciousTimingSeverity), true
}

func (h *HoneypotRegistry) record(guildID, userID uint64, trap models.TrapType, id string, severity float64) models.HoneypotCatch {
	c := models.HoneypotCatch{
		TrapType: trap,
		TrapID:   id,
		Severity: severity,
		CaughtAt: h.now(),
	}
	h.catches.Update(state.ActorKey{GuildID: guildID, UserID: userID}, func(list *[]models.HoneypotCatch) {
		*list = append(*list, c)
	})
	return c
}

func (h *HoneypotRegistry) Catches(guildID, userID uint64) []models.HoneypotCatch {
	var out []models.HoneypotCatch
	h.catches.View(state.ActorKey{GuildID: guildID, UserID: userID}, func(list *[]models.HoneypotCatch) {
		out = append(out, *list...)
	})
	return out
}

// ThreatMultiplier is the mean catch severity, capped at 1, or 0 without catches.
func (h *HoneypotRegistry) ThreatMultiplier(guildID, userID uint64) float64 {
	catches := h.Catches(guildID, userID)
	if len(catches) == 0 {
		return 0
	}

	var total float64
	for _, c := range catches {
		total += c.Severity
	}
	return capScore(total / float64(len(catches)))
}

func (h *HoneypotRegistry) ClearCatches(guildID, userID uint64) {
	h.catches.Delete(state.ActorKey{GuildID: guildID, UserID: userID})
}
