package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/m3connect/portal/internal/models"
)

func TestCreatePartnerLeadDefaultsStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("insert into partner_leads").
		WithArgs(sqlmock.AnyArg(), "Ana", "Costa", "ana@example.com", nil, "Dock Systems", nil, "PT",
			"Supplier", nil, nil, "pilot", models.LeadNew).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	store := NewLeadStore(db)
	lead, err := store.CreatePartnerLead(context.Background(), models.PartnerLead{
		FirstName:       "Ana",
		LastName:        "Costa",
		Email:           "ana@example.com",
		Company:         "Dock Systems",
		Country:         "PT",
		ActorType:       "Supplier",
		EngagementLevel: "pilot",
	})
	if err != nil {
		t.Fatalf("CreatePartnerLead: %v", err)
	}
	if lead.ID == "" || lead.Status != models.LeadNew || !lead.CreatedAt.Equal(created) {
		t.Fatalf("unexpected lead: %+v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPartnerLeadsFiltersByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cols := []string{"id", "first_name", "last_name", "email", "phone", "company", "website", "country",
		"actor_type", "solutions", "goals", "engagement_level", "status", "admin_notes", "created_at"}
	mock.ExpectQuery("select .* from partner_leads where status=\\$1 order by created_at desc").
		WithArgs(models.LeadQualified).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("l-1", "Ana", "Costa", "ana@example.com", nil, "Dock Systems", "https://dock.example", "PT",
				"Supplier", "berths", nil, "pilot", models.LeadQualified, "call back", time.Now()))

	leads, err := NewLeadStore(db).ListPartnerLeads(context.Background(), models.LeadQualified)
	if err != nil {
		t.Fatalf("ListPartnerLeads: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	if leads[0].Website == nil || *leads[0].Website != "https://dock.example" || leads[0].Phone != nil {
		t.Fatalf("nullable columns not mapped: %+v", leads[0])
	}
	if leads[0].AdminNotes == nil || *leads[0].AdminNotes != "call back" {
		t.Fatalf("admin notes not mapped: %+v", leads[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProjectsRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewLeadStore(db)
	mock.ExpectQuery("insert into marina_projects").
		WithArgs(sqlmock.AnyArg(), "user-1", "Smart berths", "50k-100k", "Q3", "Sensors on 40 berths", models.ProjectNew).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	p, err := store.CreateProject(context.Background(), models.ProjectSubmission{
		UserID:      "user-1",
		ProjectType: "Smart berths",
		BudgetRange: "50k-100k",
		Timeline:    "Q3",
		Description: "Sensors on 40 berths",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Status != models.ProjectNew {
		t.Fatalf("expected status %q, got %q", models.ProjectNew, p.Status)
	}

	cols := []string{"id", "user_id", "project_type", "budget_range", "timeline", "description", "status",
		"admin_notes", "created_at"}
	mock.ExpectQuery("select .* from marina_projects where user_id=\\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(p.ID, "user-1", "Smart berths", "50k-100k", "Q3", "Sensors on 40 berths", models.ProjectNew, nil, time.Now()))
	mock.ExpectQuery("select .* from marina_projects order by created_at desc").
		WillReturnError(errors.New("connection reset"))

	mine, err := store.ListProjects(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != p.ID {
		t.Fatalf("unexpected projects: %+v", mine)
	}
	if _, err := store.ListProjects(context.Background(), ""); err == nil {
		t.Fatal("expected error from failing query")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
