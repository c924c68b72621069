package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestCreateRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs (id, trigger, session_id, status, prompt) VALUES ($1,$2,$3,$4,$5)`)).
		WithArgs(sqlmock.AnyArg(), "scheduled", "10", RunStatusRunning, "Acesse a home").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := st.CreateRun(context.Background(), "scheduled", "10", "Acesse a home")
	if err != nil {
		t.Fatalf("CreateRun returned error: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("expected uuid run id, got %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinishRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	msg := "tool navigate_browser failed: context deadline exceeded"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE runs SET status=$1, reply=$2, steps=$3, error=$4, finished_at=NOW() WHERE id=$5`)).
		WithArgs(RunStatusFailed, "", 1, &msg, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.FinishRun(context.Background(), "run-1", RunStatusFailed, "", 1, &msg); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}
	if err := st.FinishRun(context.Background(), "", RunStatusFailed, "", 0, nil); err == nil {
		t.Fatalf("expected error for empty run id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	finished := started.Add(40 * time.Second)
	rows := sqlmock.NewRows([]string{"id", "trigger", "session_id", "status", "prompt", "reply", "steps", "error", "started_at", "finished_at"}).
		AddRow("run-2", "interactive", "10", RunStatusSucceeded, "oi", "olá", 1, nil, started.Add(time.Hour), nil).
		AddRow("run-1", "scheduled", "10", RunStatusSucceeded, "Acesse", "Enviado", 4, nil, started, finished)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, trigger, session_id, status, prompt, reply, steps, error, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT $1`)).
		WithArgs(20).
		WillReturnRows(rows)

	runs, err := st.ListRuns(context.Background(), 20)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].Steps != 4 {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[0].FinishedAt != nil || runs[1].FinishedAt == nil || !runs[1].FinishedAt.Equal(finished) {
		t.Fatalf("finished_at not scanned: %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLatestRunTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(started_at) FROM runs WHERE trigger=$1`)).
		WithArgs("scheduled").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(ts))

	got, err := st.LatestRunTime(context.Background(), "scheduled")
	if err != nil || got == nil || !got.Equal(ts) {
		t.Fatalf("LatestRunTime = %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNopRunLog(t *testing.T) {
	var log RunLog = NopRunLog{}
	id, err := log.CreateRun(context.Background(), "manual", "10", "x")
	if err != nil || id == "" {
		t.Fatalf("CreateRun = %q, %v", id, err)
	}
	if err := log.FinishRun(context.Background(), id, RunStatusSucceeded, "ok", 1, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
}
