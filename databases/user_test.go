package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/connecmaq/marketplace-api/config"
	"github.com/connecmaq/marketplace-api/databases"
	"github.com/connecmaq/marketplace-api/databases/mocks"
	"github.com/connecmaq/marketplace-api/models"
)

func TestNewUserDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	userDB := databases.NewUserDatabase(db)

	assert.NotEmpty(t, userDB)
}

func TestUserDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = 7
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "users").Return(collectionHelper)

	userDba := databases.NewUserDatabase(dbHelper)

	user, err := userDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, user)
	assert.EqualError(t, err, "mocked-error")

	user, err = userDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.User{ID: 7}, user)
	assert.NoError(t, err)
}

func TestUserDatabase_Find(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", context.Background(), mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.User)
		*arg = []models.User{{ID: 1}, {ID: 2}}
	})
	cursorHelper.On("Close", context.Background()).Return(nil)

	collectionHelper.
		On("Find", context.Background(), bson.M{"error": true}).
		Return(nil, errors.New("mocked-error"))
	collectionHelper.
		On("Find", context.Background(), bson.M{"error": false}).
		Return(cursorHelper, nil)

	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDba := databases.NewUserDatabase(dbHelper)

	users, err := userDba.Find(context.Background(), bson.M{"error": true})
	assert.Empty(t, users)
	assert.EqualError(t, err, "mocked-error")

	users, err = userDba.Find(context.Background(), bson.M{"error": false})
	assert.NoError(t, err)
	assert.Equal(t, []models.User{{ID: 1}, {ID: 2}}, users)
	cursorHelper.AssertCalled(t, "Close", context.Background())
}

func TestUserDatabase_FindCursorError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("All", context.Background(), mock.Anything).Return(errors.New("mocked-error"))
	cursorHelper.On("Close", context.Background()).Return(nil)
	collectionHelper.On("Find", context.Background(), bson.M{}).Return(cursorHelper, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	users, err := databases.NewUserDatabase(dbHelper).Find(context.Background(), bson.M{})

	assert.Nil(t, users)
	assert.EqualError(t, err, "mocked-error")
}

func TestUserDatabase_InsertOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	user := models.User{ID: 3, Details: models.UserDetails{Email: "carla@example.com"}}

	insertResult.On("Decode").Return(int64(3))
	collectionHelper.On("InsertOne", context.Background(), user).Return(insertResult, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	res, err := databases.NewUserDatabase(dbHelper).InsertOne(context.Background(), user)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), res.Decode())
}

func TestUserDatabase_CountDocuments(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("CountDocuments", context.Background(), bson.M{"user.email": "alice@example.com"}).Return(int64(1), nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	count, err := databases.NewUserDatabase(dbHelper).CountDocuments(context.Background(), bson.M{"user.email": "alice@example.com"})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
