package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/connecmaq/marketplace-api/databases/mocks"
	"github.com/connecmaq/marketplace-api/models"
)

type sentMail struct {
	to, name, subject, plain string
}

type fakeMailer struct {
	sent []sentMail
	fail map[string]bool
}

func (f *fakeMailer) Send(ctx context.Context, toEmail, toName, subject, htmlContent, plainText string) error {
	if f.fail[toEmail] {
		return errors.New("mocked-error")
	}
	f.sent = append(f.sent, sentMail{to: toEmail, name: toName, subject: subject, plain: plainText})
	return nil
}

var digestNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func unreadFilter() bson.M {
	return bson.M{
		"read":      false,
		"timestamp": bson.M{"$gte": digestNow.Add(-DigestWindow)},
	}
}

func user(id int64, email, first string) models.User {
	return models.User{ID: id, Details: models.UserDetails{Email: email, FirstName: first, Username: first}}
}

func newTestScheduler(t *testing.T, mailer Mailer) (*Scheduler, *mocks.ChatRoomDatabase, *mocks.MessageDatabase, *mocks.UserDatabase) {
	rooms := mocks.NewChatRoomDatabase(t)
	messages := mocks.NewMessageDatabase(t)
	users := mocks.NewUserDatabase(t)

	s := NewScheduler(rooms, messages, users, mailer, "https://connecmaq.example")
	s.now = func() time.Time { return digestNow }
	return s, rooms, messages, users
}

func withUnread(rooms *mocks.ChatRoomDatabase, messages *mocks.MessageDatabase) {
	messages.On("Find", mock.Anything, unreadFilter()).Return([]models.Message{
		{ID: 1, RoomID: 10, AuthorID: 1},
		{ID: 2, RoomID: 10, AuthorID: 1},
		{ID: 3, RoomID: 11, AuthorID: 2},
		{ID: 4, RoomID: 12, AuthorID: 2},
	}, nil)
	rooms.On("Find", mock.Anything, bson.M{"_id": bson.M{"$in": []int64{10, 11, 12}}}).Return([]models.ChatRoom{
		{ID: 10, Participants: []int64{1, 2}},
		{ID: 11, Participants: []int64{1, 2, 3}},
	}, nil)
}

func TestScheduler_RunOnce(t *testing.T) {
	mailer := &fakeMailer{}
	s, rooms, messages, users := newTestScheduler(t, mailer)
	withUnread(rooms, messages)
	users.On("Find", mock.Anything, bson.M{"_id": bson.M{"$in": []int64{1, 2, 3}}}).Return([]models.User{
		user(1, "alice@example.com", "Alice"),
		user(2, "bruno@example.com", "Bruno"),
		user(3, "", "Carla"),
	}, nil)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].plain, "You have 1 unread message waiting in 1 conversation.")
	assert.Equal(t, "bruno@example.com", mailer.sent[1].to)
	assert.Equal(t, "Bruno", mailer.sent[1].name)
	assert.Equal(t, "You have unread messages", mailer.sent[1].subject)
	assert.Contains(t, mailer.sent[1].plain, "You have 2 unread messages waiting in 1 conversation.")
}

func TestScheduler_RunOnceMailerFailure(t *testing.T) {
	mailer := &fakeMailer{fail: map[string]bool{"alice@example.com": true}}
	s, rooms, messages, users := newTestScheduler(t, mailer)
	withUnread(rooms, messages)
	users.On("Find", mock.Anything, mock.Anything).Return([]models.User{
		user(1, "alice@example.com", "Alice"),
		user(2, "bruno@example.com", "Bruno"),
	}, nil)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "bruno@example.com", mailer.sent[0].to)
}

func TestScheduler_RunOnceWithoutMailer(t *testing.T) {
	s, rooms, messages, _ := newTestScheduler(t, nil)
	withUnread(rooms, messages)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestScheduler_RunOnceNothingUnread(t *testing.T) {
	s, _, messages, _ := newTestScheduler(t, &fakeMailer{})
	messages.On("Find", mock.Anything, unreadFilter()).Return([]models.Message{}, nil)

	sent, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestScheduler_RunOnceFindFails(t *testing.T) {
	s, _, messages, _ := newTestScheduler(t, &fakeMailer{})
	messages.On("Find", mock.Anything, unreadFilter()).Return(nil, errors.New("mocked-error"))

	_, err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "mocked-error")
}

func TestNewSendgridMailer(t *testing.T) {
	assert.Nil(t, NewSendgridMailer("", "chat@connecmaq.example"))
	assert.NotNil(t, NewSendgridMailer("SG.test", "chat@connecmaq.example"))
}

func TestScheduler_StartStop(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, nil)
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}
