package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"antigravity2api-go/internal/constants"
	apperrors "antigravity2api-go/internal/errors"
)

// TokenUpdate carries the fields a successful refresh produces.
type TokenUpdate struct {
	AccessToken string
	ExpiresIn   int64
}

// Refresher performs the upstream token refresh. A refresh failure with
// KindUpstreamTerminal disables the credential; any other error skips it
// for this selection round only.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenUpdate, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, refreshToken string) (TokenUpdate, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (TokenUpdate, error) {
	return f(ctx, refreshToken)
}

// WindowCounter answers "how many requests did this project make in the
// trailing window". The usage log store is the single source of truth; the
// pool only reads it.
type WindowCounter interface {
	CountWithin(projectID string, window time.Duration) int
}

// Pool is the concurrency hub for credential selection. It owns an
// in-memory snapshot of the store, per-credential session nonces, and the
// LRU clock used for tie-breaking.
type Pool struct {
	mu          sync.Mutex
	store       *Store
	refresher   Refresher
	windows     WindowCounter
	hourlyLimit int

	creds      []*Credential
	sessionIDs map[string]string
	lastUsed   map[string]time.Time
	lastSave   time.Time

	group singleflight.Group
	now   func() time.Time
}

// NewPool creates a pool. Call Initialize before the first Acquire.
func NewPool(store *Store, refresher Refresher, windows WindowCounter, hourlyLimit int) *Pool {
	if hourlyLimit <= 0 {
		hourlyLimit = constants.DefaultHourlyLimit
	}
	return &Pool{
		store:       store,
		refresher:   refresher,
		windows:     windows,
		hourlyLimit: hourlyLimit,
		sessionIDs:  make(map[string]string),
		lastUsed:    make(map[string]time.Time),
		now:         time.Now,
	}
}

// SetNowFunc overrides the pool clock, for tests.
func (p *Pool) SetNowFunc(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// Initialize reloads the pool from the store. Idempotent; session nonces
// survive reloads so a credential keeps its id for the process lifetime.
func (p *Pool) Initialize(ctx context.Context) error {
	list, err := p.store.Load(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = list
	for _, cred := range list {
		if _, ok := p.sessionIDs[cred.RefreshToken]; !ok {
			p.sessionIDs[cred.RefreshToken] = uuid.NewString()
		}
	}
	return nil
}

// Reload is Initialize under its watcher-facing name.
func (p *Pool) Reload(ctx context.Context) error {
	return p.Initialize(ctx)
}

// SetHourlyLimit tunes the per-credential sliding-window ceiling at runtime.
func (p *Pool) SetHourlyLimit(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.hourlyLimit = n
	p.mu.Unlock()
}

// HourlyLimit reports the current ceiling.
func (p *Pool) HourlyLimit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hourlyLimit
}

// Size reports how many credentials are loaded.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// EnabledCount reports how many loaded credentials are enabled.
func (p *Pool) EnabledCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, cred := range p.creds {
		if cred.Enabled {
			n++
		}
	}
	return n
}

// Accounts returns the secret-free panel projection of the pool.
func (p *Pool) Accounts() []AccountInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]AccountInfo, 0, len(p.creds))
	for i, cred := range p.creds {
		out = append(out, AccountInfo{
			Index:     i,
			ProjectID: cred.ProjectID,
			Email:     cred.Email,
			Enabled:   cred.Enabled,
			Fresh:     cred.FreshEnough(now),
			CreatedAt: cred.CreatedAt,
		})
	}
	return out
}

// Acquire selects a credential: enabled, under the hourly window, fewest
// requests in the window, least-recently-used, earliest position. The
// winner is refreshed in-line when stale. Terminal refresh failures disable
// the credential, persist, and selection restarts; the loop is bounded by
// the candidate count.
func (p *Pool) Acquire(ctx context.Context) (View, error) {
	tried := make(map[string]struct{})
	attempts := p.Size() + 1
	var lastErr error

	for i := 0; i < attempts; i++ {
		cand, idx := p.selectCandidate(tried)
		if cand == nil {
			break
		}
		view, err := p.ensureFresh(ctx, cand, idx)
		if err == nil {
			p.touch(view.ProjectID)
			return view, nil
		}
		lastErr = err
		tried[cand.RefreshToken] = struct{}{}
	}

	if lastErr != nil {
		return View{}, apperrors.NoCredentialAvailable(lastErr.Error())
	}
	return View{}, apperrors.NoCredentialAvailable("")
}

// AcquireByProjectID bypasses load balancing but still honors the hourly
// window and freshness rules.
func (p *Pool) AcquireByProjectID(ctx context.Context, projectID string) (View, error) {
	p.mu.Lock()
	var cand *Credential
	idx := -1
	for i, cred := range p.creds {
		if cred.Enabled && cred.ProjectID == projectID {
			cand = cred
			idx = i
			break
		}
	}
	var windowCount int
	limit := p.hourlyLimit
	p.mu.Unlock()

	if cand == nil {
		return View{}, apperrors.CredentialNotFound(projectID)
	}
	if p.windows != nil {
		windowCount = p.windows.CountWithin(projectID, constants.UsageWindow)
	}
	if windowCount >= limit {
		return View{}, apperrors.NoCredentialAvailable(
			fmt.Sprintf("credential %s exhausted its hourly window", projectID))
	}

	view, err := p.ensureFresh(ctx, cand, idx)
	if err != nil {
		return View{}, err
	}
	p.touch(view.ProjectID)
	return view, nil
}

// RecordOutcome feeds a request result back into the pool. The usage store
// receives the same outcome through the orchestrator's log append and is
// the system of record; the pool only keeps the LRU clock.
func (p *Pool) RecordOutcome(projectID string, success bool, model string) {
	p.touch(projectID)
	if !success {
		log.WithFields(log.Fields{"project_id": projectID, "model": model}).
			Debug("request against credential failed")
	}
}

// Disable turns off the credential for projectID after the upstream rejected
// it, persists, and reports whether a credential matched.
func (p *Pool) Disable(ctx context.Context, projectID string) bool {
	p.mu.Lock()
	var cand *Credential
	for _, cred := range p.creds {
		if cred.ProjectID == projectID {
			cand = cred
			break
		}
	}
	p.mu.Unlock()
	if cand == nil {
		return false
	}
	p.disable(ctx, cand)
	return true
}

// SavedRecently reports whether the pool persisted within the given window.
// The file watcher uses it to swallow its own write events.
func (p *Pool) SavedRecently(window time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.lastSave.IsZero() && p.now().Sub(p.lastSave) < window
}

func (p *Pool) touch(projectID string) {
	if projectID == "" {
		return
	}
	p.mu.Lock()
	p.lastUsed[projectID] = p.now()
	p.mu.Unlock()
}

// selectCandidate implements selection steps 1-3 over a consistent
// snapshot. Window counts come from the usage store reader; that read takes
// no locks the usage store's writers hold while calling back into the pool,
// and performs no I/O.
func (p *Pool) selectCandidate(tried map[string]struct{}) (*Credential, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		best      *Credential
		bestIdx   = -1
		bestCount int
		bestUsed  time.Time
	)
	for i, cred := range p.creds {
		if !cred.Enabled {
			continue
		}
		if _, skip := tried[cred.RefreshToken]; skip {
			continue
		}
		count := 0
		if p.windows != nil {
			count = p.windows.CountWithin(cred.ProjectID, constants.UsageWindow)
		}
		if count >= p.hourlyLimit {
			continue
		}
		used := p.lastUsed[cred.ProjectID]
		if best == nil || count < bestCount || (count == bestCount && used.Before(bestUsed)) {
			best = cred
			bestIdx = i
			bestCount = count
			bestUsed = used
		}
	}
	return best, bestIdx
}

// ensureFresh returns a view of cand, refreshing first when the token is
// stale. Concurrent acquirers of the same stale credential collapse to one
// upstream refresh via singleflight.
func (p *Pool) ensureFresh(ctx context.Context, cand *Credential, idx int) (View, error) {
	p.mu.Lock()
	fresh := cand.FreshEnough(p.now())
	view := p.viewLocked(cand, idx)
	p.mu.Unlock()
	if fresh {
		return view, nil
	}

	_, err, _ := p.group.Do(cand.RefreshToken, func() (any, error) {
		p.mu.Lock()
		alreadyFresh := cand.FreshEnough(p.now())
		p.mu.Unlock()
		if alreadyFresh {
			return nil, nil
		}

		update, err := p.refresher.Refresh(ctx, cand.RefreshToken)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		cand.ApplyToken(update.AccessToken, update.ExpiresIn, p.now())
		snapshot := p.snapshotLocked()
		p.mu.Unlock()
		return nil, p.persist(ctx, snapshot)
	})
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindUpstreamTerminal) {
			p.disable(ctx, cand)
		}
		return View{}, err
	}

	p.mu.Lock()
	view = p.viewLocked(cand, idx)
	p.mu.Unlock()
	return view, nil
}

// disable marks the credential off, persists immediately, and logs.
// Concurrent acquirers will not see it again.
func (p *Pool) disable(ctx context.Context, cand *Credential) {
	p.mu.Lock()
	cand.Enabled = false
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	if err := p.persist(ctx, snapshot); err != nil {
		log.WithError(err).Error("persist after disabling credential failed")
	}
	log.WithField("project_id", cand.ProjectID).
		Warn("credential disabled after terminal refresh failure")
}

func (p *Pool) viewLocked(cand *Credential, idx int) View {
	return View{
		AccessToken: cand.AccessToken,
		ProjectID:   cand.ProjectID,
		SessionID:   p.sessionIDs[cand.RefreshToken],
		Email:       cand.Email,
		Index:       idx,
	}
}

func (p *Pool) snapshotLocked() []*Credential {
	out := make([]*Credential, len(p.creds))
	for i, cred := range p.creds {
		out[i] = cred.Clone()
	}
	p.lastSave = p.now()
	return out
}

// persist writes the snapshot through the store. Runs without the pool
// lock; the store serializes writers.
func (p *Pool) persist(ctx context.Context, snapshot []*Credential) error {
	return p.store.Save(ctx, snapshot)
}
