package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/llehouerou/cloudwaves/internal/catalog"
)

const saveDelay = 200 * time.Millisecond

// ErrNotSignedIn is returned by operations that need an account.
var ErrNotSignedIn = errors.New("not signed in")

// Remote is the part of the catalog the account manager needs.
type Remote interface {
	catalog.Accounts
	LikeList(ctx context.Context) ([]string, error)
}

// Manager tracks the signed-in user. It is safe for concurrent use.
type Manager struct {
	file      *File
	remote    Remote
	autoCheck bool
	logger    *slog.Logger

	mu      sync.RWMutex
	profile *catalog.Profile
	liked   map[string]bool

	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *catalog.Credentials
}

// NewManager creates a manager persisting credentials to file. With
// autoCheck the daily check-in runs after every automatic sign-in.
func NewManager(file *File, remote Remote, autoCheck bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		file:      file,
		remote:    remote,
		autoCheck: autoCheck,
		logger:    logger,
		liked:     make(map[string]bool),
	}
}

// Restore signs in with the saved credentials, if any. An unreadable
// account file is logged and treated as absent.
func (m *Manager) Restore(ctx context.Context) error {
	creds, err := m.file.Load()
	if err != nil {
		m.logger.Warn("ignoring account file", "path", m.file.Path(), "error", err)
		return nil
	}
	if creds == nil {
		return nil
	}
	if err := m.login(ctx, *creds); err != nil {
		return err
	}
	if m.autoCheck {
		if err := m.DailyCheck(ctx); err != nil {
			m.logger.Warn("daily check-in failed", "error", err)
		}
	}
	return nil
}

// SignIn logs in and, on success, saves the credentials in the background.
func (m *Manager) SignIn(ctx context.Context, creds catalog.Credentials) error {
	if err := m.login(ctx, creds); err != nil {
		return err
	}
	m.SaveAsync(creds)
	return nil
}

func (m *Manager) login(ctx context.Context, creds catalog.Credentials) error {
	profile, err := m.remote.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("login %s: %w", creds.Account, err)
	}
	m.mu.Lock()
	m.profile = &profile
	m.mu.Unlock()
	m.logger.Info("signed in", "user", profile.Nickname)

	if err := m.RefreshLikes(ctx); err != nil {
		m.logger.Warn("load liked songs", "error", err)
	}
	return nil
}

// SignOut logs out and forgets the saved credentials.
func (m *Manager) SignOut(ctx context.Context) error {
	m.cancelSave()

	err := m.remote.Logout(ctx)
	m.mu.Lock()
	m.profile = nil
	m.liked = make(map[string]bool)
	m.mu.Unlock()

	if ferr := m.file.Delete(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	return err
}

// DailyCheck performs the daily check-in.
func (m *Manager) DailyCheck(ctx context.Context) error {
	if !m.SignedIn() {
		return ErrNotSignedIn
	}
	return m.remote.DailySignin(ctx)
}

// SignedIn reports whether a user is signed in.
func (m *Manager) SignedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile != nil
}

// Profile returns the signed-in user, or nil.
func (m *Manager) Profile() *catalog.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// RefreshLikes reloads the liked-tracks set from the catalog.
func (m *Manager) RefreshLikes(ctx context.Context) error {
	ids, err := m.remote.LikeList(ctx)
	if err != nil {
		return err
	}
	liked := make(map[string]bool, len(ids))
	for _, id := range ids {
		liked[id] = true
	}
	m.mu.Lock()
	m.liked = liked
	m.mu.Unlock()
	return nil
}

// IsLiked reports whether trackID is in the liked set.
func (m *Manager) IsLiked(trackID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liked[trackID]
}

// SetLiked updates the local liked set.
func (m *Manager) SetLiked(trackID string, liked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if liked {
		m.liked[trackID] = true
	} else {
		delete(m.liked, trackID)
	}
}

// SaveAsync schedules a write of creds and returns immediately. Write
// errors are logged. A later call replaces a pending write.
func (m *Manager) SaveAsync(creds catalog.Credentials) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &creds

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDelay, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		m.saveMu.Unlock()

		if pending != nil {
			m.save(*pending)
		}
	})
}

// Flush writes a pending save now. Called on shutdown.
func (m *Manager) Flush() {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending != nil {
		m.save(*pending)
	}
}

func (m *Manager) cancelSave() {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.pending = nil
}

func (m *Manager) save(creds catalog.Credentials) {
	if err := m.file.Save(creds); err != nil {
		m.logger.Warn("save account file", "path", m.file.Path(), "error", err)
	}
}
