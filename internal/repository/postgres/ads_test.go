package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	return db, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	}
}

func adRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "advertiser_id", "domain_id", "headline", "body", "media_type",
		"status", "countries", "start_date", "end_date", "engagement_score",
		"suspicion_score", "is_cloaked", "white_url", "detected_black_url",
		"redirect_chain_depth", "created_at", "updated_at",
	})
}

func TestAdRepo_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM ads WHERE id = \$1`).
		WithArgs("ad-1").
		WillReturnRows(adRows().AddRow(
			"ad-1", "adv-1", "dom-1", "Big Sale", "Body", "image", "active",
			pq.Array([]string{"US", "BR"}), now.AddDate(0, 0, -30), nil, 80,
			65, true, "https://safe.example.com", "https://evil.example.com",
			2, now, now,
		))

	repo := NewAdRepo(db)
	ad, err := repo.Get(context.Background(), "ad-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ad.ID != "ad-1" || ad.SuspicionScore != 65 || !ad.IsCloaked {
		t.Errorf("unexpected ad: %+v", ad)
	}
	if len(ad.Countries) != 2 {
		t.Errorf("countries = %v, want 2 entries", ad.Countries)
	}
	if ad.DetectedBlackURL != "https://evil.example.com" {
		t.Errorf("black url = %q", ad.DetectedBlackURL)
	}
}

func TestAdRepo_Get_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM ads WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewAdRepo(db)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAdRepo_WriteScore(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE ads`).
		WithArgs("ad-1", 72, true, "https://evil.example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewAdRepo(db)
	if err := repo.WriteScore(context.Background(), "ad-1", 72, true, "https://evil.example.com"); err != nil {
		t.Fatalf("WriteScore() error: %v", err)
	}
}

func TestAdRepo_WriteScore_MissingAd(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE ads`).
		WithArgs("ghost", 10, false, "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewAdRepo(db)
	err := repo.WriteScore(context.Background(), "ghost", 10, false, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAdRepo_ListActive(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM ads WHERE status = 'active'`).
		WillReturnRows(adRows().
			AddRow("ad-1", "adv-1", "dom-1", "H1", "B1", "image", "active",
				pq.Array([]string{"US"}), now, nil, 50, 0, false,
				"https://a.example.com", nil, 0, now, now).
			AddRow("ad-2", "adv-1", "dom-2", "H2", "B2", "video", "active",
				pq.Array([]string{"EU"}), now, nil, 60, 30, false,
				"https://b.example.com", nil, 1, now, now))

	repo := NewAdRepo(db)
	ads, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive() error: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("len(ads) = %d, want 2", len(ads))
	}
}

func TestAdRepo_List_FilterAndTotal(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ads`).
		WithArgs("active", "adv-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT (.+) FROM ads (.+) ORDER BY suspicion_score DESC`).
		WithArgs("active", "adv-1", 5, 0).
		WillReturnRows(adRows().AddRow(
			"ad-1", "adv-1", "dom-1", "H", "B", "image", "active",
			pq.Array([]string{"US"}), now, nil, 10, 90, true,
			"https://a.example.com", nil, 3, now, now))

	repo := NewAdRepo(db)
	ads, total, err := repo.List(context.Background(), ListFilter{
		Status: "active", AdvertiserID: "adv-1", Limit: 5,
	})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 7 || len(ads) != 1 {
		t.Errorf("total = %d len = %d, want 7 and 1", total, len(ads))
	}
}
