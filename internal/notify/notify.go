// Package notify provides desktop notifications via D-Bus.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/llehouerou/cloudwaves/internal/errmsg"
	"github.com/llehouerou/cloudwaves/internal/playback"
	"github.com/llehouerou/cloudwaves/internal/queue"
)

const (
	appName = "cloudwaves"

	nowPlayingTimeout = 4000
	messageTimeout    = -1
)

// Urgency is the freedesktop notification urgency level.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical

	// Category is a freedesktop category such as "x-cloudwaves.playback".
	Category string
	// Transient notifications skip the notification history.
	Transient bool
}

const (
	categoryPlayback = "x-cloudwaves.playback"
	categoryError    = "x-cloudwaves.error"
)

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

// Reporter turns player outcomes into notifications. The now-playing
// notification is replaced in place instead of stacking up.
type Reporter struct {
	n      Notifier
	logger *slog.Logger

	mu         sync.Mutex
	nowPlaying uint32
}

// NewReporter creates a reporter sending through n.
func NewReporter(n Notifier, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{n: n, logger: logger}
}

// NowPlaying shows the track that just started.
func (r *Reporter) NowPlaying(item queue.Item) {
	body := item.Artist
	if item.Album != "" {
		body += " - " + item.Album
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.n.Notify(Notification{
		Title:      item.Title,
		Body:       body,
		Icon:       "audio-x-generic",
		Timeout:    nowPlayingTimeout,
		ReplacesID: r.nowPlaying,
		Urgency:    UrgencyLow,
		Category:   categoryPlayback,
		Transient:  true,
	})
	if err != nil {
		r.logger.Debug("notify now playing", "error", err)
		return
	}
	r.nowPlaying = id
}

// Info shows a plain message.
func (r *Reporter) Info(msg string) {
	r.send(Notification{
		Title:     appName,
		Body:      msg,
		Timeout:   messageTimeout,
		Urgency:   UrgencyNormal,
		Category:  categoryPlayback,
		Transient: true,
	})
}

// Failure shows a failed operation. subject names what it was about and
// may be empty.
func (r *Reporter) Failure(op errmsg.Op, subject string, err error) {
	if err == nil {
		return
	}
	r.send(Notification{
		Title:   appName,
		Body:    errmsg.FormatWith(op, subject, err),
		Icon:    "dialog-error",
		Timeout:  messageTimeout,
		Urgency:  UrgencyCritical,
		Category: categoryError,
	})
}

func (r *Reporter) send(n Notification) {
	if _, err := r.n.Notify(n); err != nil {
		r.logger.Debug("notify", "title", n.Title, "error", err)
	}
}

// Watch reports the events of sub until ctx is done or the subscription
// closes.
func (r *Reporter) Watch(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case e := <-sub.TrackChanged:
			r.NowPlaying(e.Current)
		case e := <-sub.Error:
			r.Failure(e.Op, e.TrackID, e.Err)
		case e := <-sub.LikeChanged:
			if e.Liked {
				r.Info("Added to liked songs")
			} else {
				r.Info("Removed from liked songs")
			}
		case <-sub.StateChanged:
		}
	}
}
