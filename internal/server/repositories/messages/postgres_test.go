package messages

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/chatter/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_ReturnsGeneratedFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now()
	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+messages.*RETURNING\s+id,\s*created_at`).
		WithArgs("c1", "u1", models.MessageTypeText, "hello", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("m1", created))

	got, err := repo.Create(context.Background(), &models.Message{
		ChatID:   "c1",
		SenderID: "u1",
		Type:     models.MessageTypeText,
		Content:  "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "m1" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestListByChat_SkipsDeleted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+id,\s*chat_id,.*WHERE\s+chat_id\s*=\s*\$1\s+AND\s+deleted_at\s+IS\s+NULL.*ORDER\s+BY\s+created_at\s+DESC.*LIMIT\s+\$2`

	rows := sqlmock.NewRows([]string{"id", "chat_id", "sender_id", "type", "content", "image_key", "created_at"}).
		AddRow("m2", "c1", "u2", "TEXT", "later", "", time.Now()).
		AddRow("m1", "c1", "u1", "TEXT", "earlier", "", time.Now().Add(-time.Minute))

	mock.ExpectQuery(q).WithArgs("c1", 50).WillReturnRows(rows)

	got, err := repo.ListByChat(context.Background(), "c1", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m2" {
		t.Fatalf("unexpected messages: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSoftDelete_OnlyBySender(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+messages\s+SET\s+deleted_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+sender_id\s*=\s*\$2\s+AND\s+deleted_at\s+IS\s+NULL`

	mock.ExpectExec(q).
		WithArgs("m1", "notsender", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.SoftDelete(context.Background(), "m1", "notsender", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows for non-sender, got %d", n)
	}
}
