package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/databases"
	"github.com/connecmaq/marketplace-api/models"
	templates "github.com/connecmaq/marketplace-api/templates/html"
)

const (
	// DigestSchedule runs the unread digest every day at 08:00 UTC
	DigestSchedule = "0 8 * * *"
	// DigestWindow is how far back the digest looks for unread messages
	DigestWindow = 24 * time.Hour

	jobTimeout = 5 * time.Minute
)

// Scheduler runs the periodic background jobs of the marketplace
type Scheduler struct {
	cron     *cron.Cron
	Rooms    databases.ChatRoomDatabase
	Messages databases.MessageDatabase
	Users    databases.UserDatabase
	// Mailer may be nil, in which case digests are counted but not sent
	Mailer  Mailer
	BaseURL string
	now     func() time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(rooms databases.ChatRoomDatabase, messages databases.MessageDatabase, users databases.UserDatabase, mailer Mailer, baseURL string) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		Rooms:    rooms,
		Messages: messages,
		Users:    users,
		Mailer:   mailer,
		BaseURL:  baseURL,
		now:      time.Now,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(DigestSchedule, s.runDigest)
	if err != nil {
		zap.S().Errorw("failed to register unread digest job", "error", err)
		return err
	}

	s.cron.Start()
	zap.S().Infow("scheduler started", "digest", DigestSchedule)
	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		zap.S().Errorw("unread digest job failed", "error", err)
	}
}

type digestEntry struct {
	unread int
	rooms  map[int64]struct{}
}

// RunOnce emails every user with unread messages from the last DigestWindow a summary of
// them and returns the number of digests sent. A message counts for every participant of
// its room except the author.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	since := s.now().UTC().Add(-DigestWindow)
	zap.S().Infow("running unread digest job", "since", since)

	messages, err := s.Messages.Find(ctx, bson.M{
		"read":      false,
		"timestamp": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		zap.S().Info("no unread messages, skipping digest")
		return 0, nil
	}

	roomIDs := make(map[int64]struct{})
	for _, m := range messages {
		roomIDs[m.RoomID] = struct{}{}
	}
	rooms, err := s.Rooms.Find(ctx, bson.M{"_id": bson.M{"$in": sortedIDs(roomIDs)}})
	if err != nil {
		return 0, err
	}
	participants := make(map[int64][]int64, len(rooms))
	for _, room := range rooms {
		participants[room.ID] = room.Participants
	}

	digests := make(map[int64]*digestEntry)
	for _, m := range messages {
		for _, p := range participants[m.RoomID] {
			if p == m.AuthorID {
				continue
			}
			d, ok := digests[p]
			if !ok {
				d = &digestEntry{rooms: make(map[int64]struct{})}
				digests[p] = d
			}
			d.unread++
			d.rooms[m.RoomID] = struct{}{}
		}
	}
	if len(digests) == 0 {
		return 0, nil
	}

	if s.Mailer == nil {
		zap.S().Warnw("no mailer configured, skipping unread digest", "recipients", len(digests))
		return 0, nil
	}

	recipientIDs := make(map[int64]struct{}, len(digests))
	for id := range digests {
		recipientIDs[id] = struct{}{}
	}
	users, err := s.Users.Find(ctx, bson.M{"_id": bson.M{"$in": sortedIDs(recipientIDs)}})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, u := range users {
		d, ok := digests[u.ID]
		if !ok || u.Details.Email == "" {
			continue
		}
		if err := s.send(ctx, u, d); err != nil {
			zap.S().Errorw("failed to send unread digest", "userID", u.ID, "error", err)
			continue
		}
		sent++
	}
	zap.S().Infow("unread digest job finished", "recipients", len(digests), "sent", sent)
	return sent, nil
}

func (s *Scheduler) send(ctx context.Context, u models.User, d *digestEntry) error {
	htmlContent, plainText := templates.RenderUnreadDigest(u.DisplayName(), d.unread, len(d.rooms), s.BaseURL)
	return s.Mailer.Send(ctx, u.Details.Email, u.DisplayName(), templates.DigestSubject, htmlContent, plainText)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
