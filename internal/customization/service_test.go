package customization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
	"github.com/MarcoPoloResearchLab/storefront/backend/internal/design"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("record-%d", s.next), nil
}

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	database, err := gorm.Open(sqlite.Open(filepath.Join(testContext.TempDir(), "customizations.db")), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&Record{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

func newTestService(testContext *testing.T, now time.Time) *Service {
	testContext.Helper()
	service, err := NewService(ServiceConfig{
		Database:   openTestDatabase(testContext),
		IDProvider: &sequenceIDs{},
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		testContext.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func sampleDraft() Draft {
	return Draft{
		TenantID:  "acme",
		UserID:    "user-1",
		SessionID: "editor-1",
		Design: design.Design{
			Base:         design.BaseProduct{Type: "T-Shirt", Size: "M", Color: "Black"},
			CanvasWidth:  600,
			CanvasHeight: 500,
			Texts: []design.TextLayer{{
				ID:         "t1",
				Text:       "Hello",
				Position:   design.Point{X: 40, Y: 40},
				FontFamily: "Arial",
				FontSize:   24,
				Color:      "#000000",
			}},
			Order: []design.ElementRef{design.TextRef("t1")},
		},
		Pricing: design.Pricing{
			Currency:         "EGP",
			BaseProductPrice: catalog.MoneyFromMajor(150),
			TextPrice:        catalog.MoneyFromMajor(20),
			ImagePrice:       catalog.MoneyFromMajor(15),
			TextCount:        1,
			TotalPrice:       catalog.MoneyFromMajor(170),
		},
	}
}

func TestCreateSessionStoresPendingRecord(testContext *testing.T) {
	now := time.Unix(1760000000, 0)
	service := newTestService(testContext, now)

	record, err := service.CreateSession(context.Background(), sampleDraft())
	if err != nil {
		testContext.Fatalf("create session failed: %v", err)
	}
	if record.Status != StatusPending || record.PreviewURL != "" {
		testContext.Fatalf("expected pending record without preview, got %#v", record)
	}
	if record.TotalPriceMinor != 17000 || record.Currency != "EGP" || record.TextCount != 1 {
		testContext.Fatalf("unexpected pricing columns %#v", record)
	}
	if record.CreatedAtSeconds != now.Unix() {
		testContext.Fatalf("expected created_at %d, got %d", now.Unix(), record.CreatedAtSeconds)
	}

	var document map[string]any
	if err := json.Unmarshal([]byte(record.DesignJSON), &document); err != nil {
		testContext.Fatalf("design json is not valid: %v", err)
	}
	base, ok := document["base_product"].(map[string]any)
	if !ok || base["type"] != "T-Shirt" {
		testContext.Fatalf("expected base product in design json, got %v", document)
	}
	if images, ok := document["images"].([]any); !ok || len(images) != 0 {
		testContext.Fatalf("expected empty images array, got %v", document["images"])
	}
}

func TestCreateSessionValidatesDraft(testContext *testing.T) {
	service := newTestService(testContext, time.Unix(1760000000, 0))
	cases := map[string]func(*Draft){
		"missing_tenant_id":       func(d *Draft) { d.TenantID = " " },
		"missing_user_id":         func(d *Draft) { d.UserID = "" },
		"incomplete_base_product": func(d *Draft) { d.Design.Base.Color = "" },
	}
	for reason, mutate := range cases {
		draft := sampleDraft()
		mutate(&draft)
		_, err := service.CreateSession(context.Background(), draft)
		var serviceErr *ServiceError
		if !errors.As(err, &serviceErr) {
			testContext.Fatalf("%s: expected ServiceError, got %v", reason, err)
		}
		if serviceErr.Code() != opCreateSession+"."+reason {
			testContext.Fatalf("%s: unexpected code %s", reason, serviceErr.Code())
		}
	}
}

func TestAttachPreviewCompletesRecord(testContext *testing.T) {
	service := newTestService(testContext, time.Unix(1760000000, 0))
	record, err := service.CreateSession(context.Background(), sampleDraft())
	if err != nil {
		testContext.Fatalf("create session failed: %v", err)
	}

	updated, err := service.AttachPreview(context.Background(), record.ID, "/previews/acme/one.jpg")
	if err != nil {
		testContext.Fatalf("attach preview failed: %v", err)
	}
	if updated.Status != StatusCompleted || updated.PreviewURL != "/previews/acme/one.jpg" {
		testContext.Fatalf("unexpected record after attach %#v", updated)
	}

	stored, err := service.Get(context.Background(), "acme", "user-1", record.ID)
	if err != nil {
		testContext.Fatalf("get failed: %v", err)
	}
	if stored.Status != StatusCompleted {
		testContext.Fatalf("expected completed status to persist")
	}

	if _, err := service.AttachPreview(context.Background(), "missing", "/x.jpg"); !errors.Is(err, ErrRecordNotFound) {
		testContext.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := service.AttachPreview(context.Background(), record.ID, " "); !errors.Is(err, errMissingPreviewURL) {
		testContext.Fatalf("expected missing preview url error, got %v", err)
	}
}

func TestGetScopesToOwner(testContext *testing.T) {
	service := newTestService(testContext, time.Unix(1760000000, 0))
	record, err := service.CreateSession(context.Background(), sampleDraft())
	if err != nil {
		testContext.Fatalf("create session failed: %v", err)
	}

	if _, err := service.Get(context.Background(), "acme", "user-2", record.ID); !errors.Is(err, ErrRecordNotFound) {
		testContext.Fatalf("expected other user to be denied, got %v", err)
	}
	if _, err := service.Get(context.Background(), "globex", "user-1", record.ID); !errors.Is(err, ErrRecordNotFound) {
		testContext.Fatalf("expected other tenant to be denied, got %v", err)
	}

	records, err := service.ListForUser(context.Background(), "acme", "user-1")
	if err != nil {
		testContext.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != record.ID {
		testContext.Fatalf("unexpected records %#v", records)
	}
}

func TestNewServiceRequiresDependencies(testContext *testing.T) {
	if _, err := NewService(ServiceConfig{IDProvider: &sequenceIDs{}}); !errors.Is(err, errMissingDatabase) {
		testContext.Fatalf("expected missing database error, got %v", err)
	}
	if _, err := NewService(ServiceConfig{Database: openTestDatabase(testContext)}); !errors.Is(err, errMissingIDProvider) {
		testContext.Fatalf("expected missing id provider error, got %v", err)
	}
}
