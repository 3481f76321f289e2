package invites

import (
	"context"
	"sync"
	"time"

	"gatewarden/internal/metrics"
	"gatewarden/internal/storage"

	"go.uber.org/zap"
)

type Invite struct {
	Code        string
	Uses        int
	InviterID   string
	InviterName string
}

type Fetcher interface {
	GuildInvites(guildID string) ([]Invite, error)
}

type Tracker struct {
	mu      sync.Mutex
	store   *storage.Store
	logger  *zap.Logger
	fetcher Fetcher
	cache   map[string]map[string]int
}

func NewTracker(store *storage.Store, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		cache:  make(map[string]map[string]int),
	}
}

func (t *Tracker) SetFetcher(fetcher Fetcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fetcher = fetcher
}

func (t *Tracker) Snapshot(guildID string) {
	t.mu.Lock()
	fetcher := t.fetcher
	t.mu.Unlock()
	if fetcher == nil {
		return
	}

	live, err := fetcher.GuildInvites(guildID)
	if err != nil {
		t.logger.Warn("invite snapshot failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}

	t.mu.Lock()
	t.cache[guildID] = usesByCode(live)
	t.mu.Unlock()
}

func (t *Tracker) Refresh() {
	t.mu.Lock()
	guilds := make([]string, 0, len(t.cache))
	for guildID := range t.cache {
		guilds = append(guilds, guildID)
	}
	t.mu.Unlock()

	for _, guildID := range guilds {
		t.Snapshot(guildID)
	}
}

func (t *Tracker) Forget(guildID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cache, guildID)
}

func (t *Tracker) TrackedCodes(guildID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	codes, ok := t.cache[guildID]
	return len(codes), ok
}

func (t *Tracker) TrackJoin(ctx context.Context, guildID, userID string) (storage.InviteAttribution, bool) {
	t.mu.Lock()
	fetcher := t.fetcher
	t.mu.Unlock()
	if fetcher == nil {
		return storage.InviteAttribution{}, false
	}

	live, err := fetcher.GuildInvites(guildID)
	if err != nil {
		t.logger.Warn("invite fetch failed", zap.String("guild_id", guildID), zap.Error(err))
		return storage.InviteAttribution{}, false
	}

	t.mu.Lock()
	previous, known := t.cache[guildID]
	t.cache[guildID] = usesByCode(live)
	t.mu.Unlock()

	if !known {
		metrics.InviteAttributions.WithLabelValues("unknown").Inc()
		return storage.InviteAttribution{}, false
	}

	var used []Invite
	for _, invite := range live {
		if invite.Uses == previous[invite.Code]+1 {
			used = append(used, invite)
		}
	}
	if len(used) != 1 {
		metrics.InviteAttributions.WithLabelValues("unknown").Inc()
		return storage.InviteAttribution{}, false
	}

	metrics.InviteAttributions.WithLabelValues("attributed").Inc()
	attr := storage.InviteAttribution{
		GuildID:     guildID,
		UserID:      userID,
		InviteCode:  used[0].Code,
		InviterID:   used[0].InviterID,
		InviterName: used[0].InviterName,
		JoinedAt:    time.Now(),
	}
	if err := t.store.SaveInviteAttribution(ctx, attr); err != nil {
		t.logger.Warn("save invite attribution failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
	}
	return attr, true
}

func usesByCode(invites []Invite) map[string]int {
	uses := make(map[string]int, len(invites))
	for _, invite := range invites {
		uses[invite.Code] = invite.Uses
	}
	return uses
}
