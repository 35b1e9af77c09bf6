package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"clinicdesk/internal/domain"
	"clinicdesk/internal/store"
)

func TestPostgresIntegration_ReferenceAllocationAndDayPurge(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("CLINICDESK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CLINICDESK_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "clinicdesk_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	day := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	nextDay := day.AddDate(0, 0, 1)

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		s := scheduleTx{tx: tx}

		a1, err := s.CreateAppointment(ctx, domain.Appointment{
			PatientID:       "p1",
			FirstName:       "Amara",
			PhoneNumber:     "0771234567",
			AppointmentDate: day,
			ReferenceNumber: "1504250001",
			PaymentStatus:   domain.PaymentStatusPayNow,
		})
		if err != nil {
			return err
		}
		if a1.ReferenceNumber != "1504250001" {
			return fmt.Errorf("reference = %q, want %q", a1.ReferenceNumber, "1504250001")
		}

		count, err := s.CountOnDate(ctx, day)
		if err != nil {
			return err
		}
		if count != 1 {
			return fmt.Errorf("count = %d, want 1", count)
		}

		// Time-of-day on the incoming date must not leak past normalization.
		a2, err := s.CreateAppointment(ctx, domain.Appointment{
			FirstName:       "Nimal",
			PhoneNumber:     "0719876543",
			AppointmentDate: day.Add(14 * time.Hour),
			ReferenceNumber: "1504250002",
			PaymentStatus:   domain.PaymentStatusPayLater,
		})
		if err != nil {
			return err
		}
		if !a2.AppointmentDate.Equal(day) {
			return fmt.Errorf("appointmentDate = %v, want %v", a2.AppointmentDate, day)
		}

		_, err = s.CreateAppointment(ctx, domain.Appointment{
			FirstName:       "Dupe",
			PhoneNumber:     "0711111111",
			AppointmentDate: day,
			ReferenceNumber: "1504250001",
			PaymentStatus:   domain.PaymentStatusPayLater,
		})
		if !errors.Is(err, store.ErrDuplicateReference) {
			return fmt.Errorf("duplicate err = %v, want %v", err, store.ErrDuplicateReference)
		}

		_, err = s.CreateAppointment(ctx, domain.Appointment{
			FirstName:       "Kumari",
			PhoneNumber:     "0722222222",
			AppointmentDate: nextDay,
			ReferenceNumber: "1604250001",
			PaymentStatus:   domain.PaymentStatusPayLater,
		})
		if err != nil {
			return err
		}

		count, err = s.CountOnDate(ctx, day)
		if err != nil {
			return err
		}
		if count != 2 {
			return fmt.Errorf("same-day count = %d, want 2", count)
		}

		maxIssued, err := s.MaxIssuedSequence(ctx, day)
		if err != nil {
			return err
		}
		if maxIssued != 2 {
			return fmt.Errorf("max issued = %d, want 2", maxIssued)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}

	// Repo-level operations run outside the setup transaction, so point the
	// session at the throwaway schema explicitly.
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path error: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.NewRaw("SET search_path TO public").Exec(ctx)
	})

	repo := NewAppointmentRepo(db)

	found, err := repo.FindByReference(ctx, "1504250002")
	if err != nil {
		t.Fatalf("FindByReference error: %v", err)
	}
	if found.FirstName != "Nimal" {
		t.Fatalf("firstName = %q, want %q", found.FirstName, "Nimal")
	}

	if _, err := repo.FindByReference(ctx, "9999990001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown reference err = %v, want %v", err, store.ErrNotFound)
	}

	byPatient, err := repo.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByPatient error: %v", err)
	}
	if len(byPatient) != 1 || byPatient[0].ReferenceNumber != "1504250001" {
		t.Fatalf("ListByPatient = %v, want single 1504250001", byPatient)
	}

	if err := repo.DeleteByReference(ctx, "1504250001"); err != nil {
		t.Fatalf("DeleteByReference error: %v", err)
	}
	if err := repo.DeleteByReference(ctx, "1504250001"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete err = %v, want %v", err, store.ErrNotFound)
	}

	// After the mid-day delete the count drops to 1 but 1504250002 is still
	// issued; allocation reads must reflect that so the next proposal moves
	// past the live suffix.
	err = repo.InDayTransaction(ctx, day, func(ctx context.Context, s store.ScheduleTx) error {
		count, err := s.CountOnDate(ctx, day)
		if err != nil {
			return err
		}
		if count != 1 {
			return fmt.Errorf("post-delete count = %d, want 1", count)
		}
		maxIssued, err := s.MaxIssuedSequence(ctx, day)
		if err != nil {
			return err
		}
		if maxIssued != 2 {
			return fmt.Errorf("post-delete max issued = %d, want 2", maxIssued)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("post-delete allocation reads: %v", err)
	}

	deleted, err := repo.DeleteAllOnDate(ctx, day)
	if err != nil {
		t.Fatalf("DeleteAllOnDate error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	// The purge must not touch the adjacent day.
	nextDayRows, err := repo.ListOnDate(ctx, nextDay)
	if err != nil {
		t.Fatalf("ListOnDate error: %v", err)
	}
	if len(nextDayRows) != 1 || nextDayRows[0].ReferenceNumber != "1604250001" {
		t.Fatalf("next-day rows = %v, want single 1604250001", nextDayRows)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
