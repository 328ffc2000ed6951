package sessions

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/quantlens/quantlens/backend/gateway/internal/kvstore"
	"github.com/quantlens/quantlens/backend/gateway/pkg/metrics"
)

const (
	sessionKeyPrefix   = "session:"
	userIndexPrefix    = "user_sessions:"
	activeIndexKey     = "active_sessions"
	activityKeyPrefix  = "session_activity:"
	eventsChannel      = "sessions:events"
	maxActivityRecords = 100
)

const (
	// DefaultMaxAge is the session TTL when none is configured.
	DefaultMaxAge = 24 * time.Hour
	// DefaultMaxConcurrentSessions bounds live sessions per user.
	DefaultMaxConcurrentSessions = 5
)

// Options controls session lifetime and bookkeeping.
type Options struct {
	// MaxAge is the TTL applied to the session hash and its index entries.
	MaxAge time.Duration
	// MaxConcurrentSessions caps live sessions per user; <= 0 disables the cap.
	MaxConcurrentSessions int
	// TrackActivity appends lifecycle records to the per-session activity log.
	TrackActivity bool
	// ExtendOnActivity resets the TTL on every UpdateActivity (sliding window).
	ExtendOnActivity bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxAge:                DefaultMaxAge,
		MaxConcurrentSessions: DefaultMaxConcurrentSessions,
		TrackActivity:         true,
		ExtendOnActivity:      true,
	}
}

// Manager owns session create/read/update/destroy, per-user enumeration,
// concurrent-session-limit enforcement and activity tracking, all backed by
// an injected kvstore.Store. It holds no mutable state of its own, so a single
// Manager is shared by every request goroutine.
type Manager struct {
	store kvstore.Store
	opts  Options
	now   func() time.Time
}

func NewManager(store kvstore.Store, opts Options) *Manager {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Manager{store: store, opts: opts, now: time.Now}
}

func (m *Manager) nowMillis() int64 {
	return m.now().UnixMilli()
}

var minScore = math.Inf(-1)

func sessionKey(id string) string   { return sessionKeyPrefix + id }
func userIndexKey(id string) string { return userIndexPrefix + id }
func activityKey(id string) string  { return activityKeyPrefix + id }

func formatMillis(ms int64) string { return strconv.FormatInt(ms, 10) }

// CreateSession writes the session hash, indexes it under the owner and the
// global active set, applies the TTL and then enforces the concurrency limit.
// The enforcement step evicts least-recently-active sessions first, so the
// session created here always survives its own creation call.
func (m *Manager) CreateSession(ctx context.Context, sessionID string, s *Session) error {
	now := m.nowMillis()
	if s.LoginTime == 0 {
		s.LoginTime = now
	}
	if s.LastActivity < s.LoginTime {
		s.LastActivity = s.LoginTime
	}

	if err := m.store.HSet(ctx, sessionKey(sessionID), s.fields()); err != nil {
		return err
	}
	if err := m.store.Expire(ctx, sessionKey(sessionID), m.opts.MaxAge); err != nil {
		return err
	}
	if err := m.store.ZAdd(ctx, userIndexKey(s.UserID), kvstore.Member{Score: float64(s.LoginTime), Member: sessionID}); err != nil {
		return err
	}
	if err := m.store.Expire(ctx, userIndexKey(s.UserID), m.opts.MaxAge); err != nil {
		return err
	}
	if err := m.store.ZAdd(ctx, activeIndexKey, kvstore.Member{Score: float64(s.LoginTime), Member: sessionID}); err != nil {
		return err
	}

	if m.opts.MaxConcurrentSessions > 0 {
		// Not transactional with the write above: two simultaneous logins can
		// both exceed the limit until one of them runs this. Accepted race.
		if _, err := m.EnforceConcurrentSessionLimit(ctx, s.UserID, m.opts.MaxConcurrentSessions); err != nil {
			return err
		}
	}

	if m.opts.TrackActivity {
		m.recordActivity(ctx, sessionID, "session_created", map[string]string{
			"ipAddress": s.IPAddress,
			"userAgent": s.UserAgent,
		})
	}
	metrics.SessionsCreated.Inc()
	return nil
}

// GetSession returns the session or nil when the hash is absent or empty,
// which covers both "never existed" and "expired".
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	f, err := m.store.HGetAll(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	if len(f) == 0 {
		return nil, nil
	}
	return sessionFromFields(f), nil
}

// UpdateActivity bumps lastActivity to now. Returns false when the session no
// longer exists. With ExtendOnActivity the TTL slides forward to MaxAge again.
func (m *Manager) UpdateActivity(ctx context.Context, sessionID string) (bool, error) {
	f, err := m.store.HGetAll(ctx, sessionKey(sessionID))
	if err != nil {
		return false, err
	}
	if len(f) == 0 {
		return false, nil
	}
	now := m.nowMillis()
	if err := m.store.HSet(ctx, sessionKey(sessionID), map[string]string{
		"lastActivity": formatMillis(now),
	}); err != nil {
		return false, err
	}
	if m.opts.ExtendOnActivity {
		if err := m.store.Expire(ctx, sessionKey(sessionID), m.opts.MaxAge); err != nil {
			return false, err
		}
		if uid := f["userId"]; uid != "" {
			if err := m.store.Expire(ctx, userIndexKey(uid), m.opts.MaxAge); err != nil {
				return false, err
			}
		}
		_ = m.store.Expire(ctx, activityKey(sessionID), m.opts.MaxAge)
	}
	return true, nil
}

// DestroySession removes the session hash and both index entries. Returns
// false when the session did not exist (stale index entries are still pruned).
func (m *Manager) DestroySession(ctx context.Context, sessionID string) (bool, error) {
	return m.destroy(ctx, sessionID, "logout")
}

func (m *Manager) destroy(ctx context.Context, sessionID, reason string) (bool, error) {
	f, err := m.store.HGetAll(ctx, sessionKey(sessionID))
	if err != nil {
		return false, err
	}
	if len(f) == 0 {
		// self-heal: drop any index entry that outlived its hash
		_ = m.store.ZRem(ctx, activeIndexKey, sessionID)
		return false, nil
	}
	userID := f["userId"]
	if err := m.store.Del(ctx, sessionKey(sessionID), activityKey(sessionID)); err != nil {
		return false, err
	}
	if userID != "" {
		if err := m.store.ZRem(ctx, userIndexKey(userID), sessionID); err != nil {
			return false, err
		}
	}
	if err := m.store.ZRem(ctx, activeIndexKey, sessionID); err != nil {
		return false, err
	}

	event, _ := json.Marshal(map[string]string{
		"event":     "session_destroyed",
		"sessionId": sessionID,
		"userId":    userID,
		"reason":    reason,
	})
	_ = m.store.Publish(ctx, eventsChannel, string(event))
	metrics.SessionsDestroyed.WithLabelValues(reason).Inc()
	return true, nil
}

// GetUserSessions returns the user's live session ids, lazily pruning index
// entries whose backing hash has expired.
func (m *Manager) GetUserSessions(ctx context.Context, userID string) ([]string, error) {
	ids, err := m.store.ZRange(ctx, userIndexKey(userID), 0, -1)
	if err != nil {
		return nil, err
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := m.store.Exists(ctx, sessionKey(id))
		if err != nil {
			return nil, err
		}
		if !ok {
			_ = m.store.ZRem(ctx, userIndexKey(userID), id)
			_ = m.store.ZRem(ctx, activeIndexKey, id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// DestroyUserSessions bulk-destroys all of a user's sessions except the
// optionally excluded one ("log out everywhere else"). Returns the count.
func (m *Manager) DestroyUserSessions(ctx context.Context, userID, excludeSessionID string) (int, error) {
	ids, err := m.GetUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if id == excludeSessionID {
			continue
		}
		ok, err := m.destroy(ctx, id, "logout_all")
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// EnforceConcurrentSessionLimit destroys the user's least-recently-active
// sessions until at most max remain. Returns the number evicted.
func (m *Manager) EnforceConcurrentSessionLimit(ctx context.Context, userID string, max int) (int, error) {
	ids, err := m.GetUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) <= max {
		return 0, nil
	}

	type candidate struct {
		id           string
		lastActivity int64
	}
	cands := make([]candidate, 0, len(ids))
	for _, id := range ids {
		s, err := m.GetSession(ctx, id)
		if err != nil {
			return 0, err
		}
		if s == nil {
			continue
		}
		cands = append(cands, candidate{id: id, lastActivity: s.LastActivity})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].lastActivity < cands[j].lastActivity })

	evicted := 0
	for _, c := range cands {
		if len(cands)-evicted <= max {
			break
		}
		ok, err := m.destroy(ctx, c.id, "evicted")
		if err != nil {
			return evicted, err
		}
		if ok {
			evicted++
		}
	}
	return evicted, nil
}

// CleanupExpiredSessions sweeps the global active-session index for entries
// older than MaxAge whose backing hash is gone and removes them. This is the
// garbage collector behind the lazily self-healing index invariant.
func (m *Manager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	cutoff := float64(m.nowMillis() - m.opts.MaxAge.Milliseconds())
	stale, err := m.store.ZRangeByScore(ctx, activeIndexKey, minScore, cutoff)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range stale {
		ok, err := m.store.Exists(ctx, sessionKey(id))
		if err != nil {
			return removed, err
		}
		if ok {
			// hash still alive (sliding TTL kept it); leave the entry alone
			continue
		}
		if err := m.store.ZRem(ctx, activeIndexKey, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ActivityLog returns the most recent activity records for a session, newest
// first.
func (m *Manager) ActivityLog(ctx context.Context, sessionID string) ([]ActivityRecord, error) {
	raw, err := m.store.LRange(ctx, activityKey(sessionID), 0, maxActivityRecords-1)
	if err != nil {
		return nil, err
	}
	out := make([]ActivityRecord, 0, len(raw))
	for _, r := range raw {
		var rec ActivityRecord
		if err := json.Unmarshal([]byte(r), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecordActivity appends a record to the session's capped activity log.
func (m *Manager) RecordActivity(ctx context.Context, sessionID, typ string, metadata map[string]string) {
	if !m.opts.TrackActivity {
		return
	}
	m.recordActivity(ctx, sessionID, typ, metadata)
}

// recordActivity is best-effort: a failed log write never fails the caller.
func (m *Manager) recordActivity(ctx context.Context, sessionID, typ string, metadata map[string]string) {
	rec, err := json.Marshal(ActivityRecord{Type: typ, Timestamp: m.nowMillis(), Metadata: metadata})
	if err != nil {
		return
	}
	key := activityKey(sessionID)
	if err := m.store.LPush(ctx, key, string(rec)); err != nil {
		return
	}
	_ = m.store.LTrim(ctx, key, 0, maxActivityRecords-1)
	_ = m.store.Expire(ctx, key, m.opts.MaxAge)
}
