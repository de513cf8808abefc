package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
)

// TestProfileStoreIntegration exercises the profile store against a live database.
func TestProfileStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_PROFILE_INTEGRATION") != "true" {
		t.Skip("set RUN_PROFILE_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := NewStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer store.Close()

	userID := uuid.NewString()
	email := fmt.Sprintf("it_%d@example.com", time.Now().UnixNano())

	if _, err := store.GetByUserID(ctx, userID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before create, got %v", err)
	}

	created, err := store.Create(ctx, models.Profile{
		UserID:           userID,
		FirstName:        "Integration",
		LastName:         "Test",
		Email:            email,
		OrganizationType: models.OrgMarinaPort,
		OrganizationName: "Port Test",
		Country:          "FR",
		Role:             models.RoleMarina,
		Status:           models.StatusPending,
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if created.Role != models.RoleMarina || created.Status != models.StatusPending {
		t.Fatalf("unexpected role/status: %s/%s", created.Role, created.Status)
	}

	if _, err := store.Create(ctx, models.Profile{UserID: userID, Email: email, Role: models.RoleUser, Status: models.StatusPending}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on duplicate, got %v", err)
	}

	title := "Harbour master"
	updated, err := store.UpdateByUserID(ctx, userID, models.ProfileUpdate{JobTitle: &title})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.JobTitle == nil || *updated.JobTitle != title {
		t.Fatalf("job title not updated: %+v", updated.JobTitle)
	}

	verified := models.StatusVerified
	moderated, err := store.Moderate(ctx, userID, models.Moderation{Status: &verified})
	if err != nil {
		t.Fatalf("moderate profile: %v", err)
	}
	if moderated.Status != models.StatusVerified {
		t.Fatalf("status not moderated: %s", moderated.Status)
	}

	list, err := store.List(ctx, storage.ProfileFilter{Query: email, Status: &verified})
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(list) != 1 || list[0].UserID != userID {
		t.Fatalf("unexpected list result: %+v", list)
	}

	leads := NewLeadStoreFromStore(store)
	defer leads.Close()
	project, err := leads.CreateProject(ctx, models.ProjectSubmission{UserID: userID, ProjectType: "Energy", Description: "Shore power"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	mine, err := leads.ListProjects(ctx, userID)
	if err != nil || len(mine) != 1 || mine[0].ID != project.ID {
		t.Fatalf("list projects: %v %+v", err, mine)
	}

	if _, err := store.pool.Exec(ctx, `DELETE FROM marina_projects WHERE user_id = $1; `, userID); err != nil {
		t.Logf("cleanup projects: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1;`, userID); err != nil {
		t.Logf("cleanup profile: %v", err)
	}
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
