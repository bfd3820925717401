package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/lending/internal/config"
)

func newTestService(t *testing.T, db TxBeginner) *Service {
	t.Helper()
	cfg := &config.UploadConfig{
		BatchSize:       1000,
		ColumnType:      "VARCHAR(80)",
		IdentityColumns: []string{"BS:borrower_id"},
		Timeout:         time.Minute,
	}
	svc, err := NewService(db, cfg, config.DefaultConstants())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestService_Upload(t *testing.T) {
	tx := &fakeTx{}
	svc := newTestService(t, &fakeDB{tx: tx})

	result, err := svc.Upload(context.Background(), []UploadedFile{
		csvFile("BS.csv", "name\na\nb\n"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.JobID == "" {
		t.Error("JobID not assigned")
	}
	if got := svc.SuccessMessage(result); got != "Success!!! 2 records were securely stored in the database." {
		t.Errorf("SuccessMessage() = %q", got)
	}
}

func TestService_UploadKeepsJobID(t *testing.T) {
	svc := newTestService(t, &fakeDB{tx: &fakeTx{}})
	ctx := ContextWithJobID(context.Background(), "given")

	result, err := svc.Upload(ctx, []UploadedFile{csvFile("a.csv", "x\n1\n")})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.JobID != "given" {
		t.Errorf("JobID = %q, want given", result.JobID)
	}
}

func TestService_UploadNoFiles(t *testing.T) {
	svc := newTestService(t, &fakeDB{tx: &fakeTx{}})
	if _, err := svc.Upload(context.Background(), nil); !errors.Is(err, ErrNoFiles) {
		t.Errorf("Upload() error = %v, want ErrNoFiles", err)
	}
}

func TestNewService_BadIdentityColumns(t *testing.T) {
	cfg := &config.UploadConfig{IdentityColumns: []string{"BS"}}
	if _, err := NewService(&fakeDB{}, cfg, config.DefaultConstants()); err == nil {
		t.Error("NewService() error = nil, want identity parse failure")
	}
}
