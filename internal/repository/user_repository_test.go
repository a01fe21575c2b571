package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/magicpixa/internal/models"
)

func newMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func TestFindByUID(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE uid = ?")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "email", "display_name", "subscription_plan", "credits", "signed_up_at", "created_at", "updated_at"}).
			AddRow("u1", "a@b.c", "Ann", "free", 7, now, now, now))

	acc, err := repo.FindByUID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, 7, acc.Credits)
	assert.Equal(t, "free", acc.SubscriptionPlan)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUIDMissing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE uid = ?")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"uid"}))

	acc, err := repo.FindByUID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestCredits(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT credits FROM users WHERE uid = ?")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT credits FROM users WHERE uid = ?")).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}))

	credits, ok, err := repo.Credits(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12, credits)

	_, ok, err = repo.Credits(context.Background(), "u2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfAbsent(t *testing.T) {
	repo, mock := newMock(t)
	acc := models.Account{UID: "u1", Email: "a@b.c", SubscriptionPlan: "free", Credits: 10}

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO users")).
		WithArgs("u1", "a@b.c", "", "free", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO users")).
		WithArgs("u1", "a@b.c", "", "free", 10).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), acc)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), acc)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductCredits(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "sufficient", affected: 1, want: true},
		{name: "insufficient", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits = credits - ?")).
				WithArgs(3, "u1", 3).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.DeductCredits(context.Background(), "u1", 3)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeductCreditsError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits = credits - ?")).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.DeductCredits(context.Background(), "u1", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deduct credits")
}

func TestSignUpIsGuardedBySignedUpAt(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "a@b.c", "Ann", "vip_tester", 999999).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.SignUp(context.Background(), models.Account{UID: "u1", Email: "a@b.c", DisplayName: "Ann", SubscriptionPlan: "vip_tester", Credits: 999999})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpQueryNeverRegrantsSignedUpAccounts(t *testing.T) {
	query := signUpQuery(t)
	update := query[strings.Index(query, "ON DUPLICATE KEY UPDATE"):]

	for _, col := range []string{"credits", "subscription_plan", "email", "display_name"} {
		assert.Regexp(t, col+` = IF\(signed_up_at IS NULL`, update, col)
	}
	// MySQL applies assignments left to right: the plan comparison must see the old plan and
	// signed_up_at must be set last.
	assert.Less(t, strings.Index(update, "credits = IF"), strings.Index(update, "subscription_plan = IF"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(update), "signed_up_at = COALESCE(signed_up_at, NOW())"))
}

// signUpQuery returns the statement SignUp sends to the database.
func signUpQuery(t *testing.T) string {
	t.Helper()
	var captured string
	matcher := sqlmock.QueryMatcherFunc(func(_, actual string) error {
		captured = actual
		return nil
	})
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewUserRepository(db).SignUp(context.Background(), models.Account{UID: "u1", SubscriptionPlan: "free", Credits: 10}))
	require.NoError(t, mock.ExpectationsWereMet())
	return captured
}

func TestAddCredits(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET credits = credits + ?")).
		WithArgs(5, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.AddCredits(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestList(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY created_at DESC LIMIT ?")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"uid", "email", "display_name", "subscription_plan", "credits", "signed_up_at", "created_at", "updated_at"}).
			AddRow("u1", "", "", "free", 10, nil, now, now).
			AddRow("u2", "b@c.d", "Bo", "pro", 100, now, now, now))

	accounts, err := repo.List(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "u2", accounts[1].UID)
}
