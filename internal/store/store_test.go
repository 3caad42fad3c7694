package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hyperengineering/estimator/internal/catalog"
	"github.com/hyperengineering/estimator/internal/types"
	"github.com/oklog/ulid/v2"
)

func intPtr(v int) *int { return &v }

func sampleRow(jobTypeID string) types.TemplateRow {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return types.TemplateRow{
		ID:          ulid.Make().String(),
		JobTypeID:   jobTypeID,
		TradeID:     "bathroom-remodel",
		TradeName:   "Bathroom Remodel",
		JobTypeName: "Tub-to-Shower Conversion",
		BaseScope:   []string{"Remove tub", "Install tile"},
		ScopeSections: []catalog.ScopeSection{
			{Title: "Demolition", Items: []string{"Remove tub"}},
			{Title: "Finish", Items: []string{"Install tile"}},
		},
		Options: []catalog.JobOption{
			{ID: "niche", Label: "Niche", Type: catalog.OptionBoolean, PriceModifier: intPtr(450), ScopeAddition: "Add niche"},
			{ID: "glass-door", Label: "Glass door", Type: catalog.OptionSelect, Choices: []catalog.Choice{
				{Value: "curtain", Label: "Curtain"},
				{Value: "framed", Label: "Framed", PriceModifier: 800, ScopeAddition: "Framed door"},
			}},
		},
		BasePriceLow:  8500,
		BasePriceHigh: 12000,
		EstimatedDays: &catalog.DayRange{Low: 5, High: 8},
		Warranty:      "2-year workmanship",
		Exclusions:    []string{"Mold remediation"},
		IsDefault:     true,
		IsActive:      true,
		CreatedBy:     types.SystemActor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// runTemplateStoreTests exercises the TemplateStore contract against any backend.
func runTemplateStoreTests(t *testing.T, open func(t *testing.T) TemplateStore) {
	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		_, err := s.GetTemplate(context.Background(), "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetTemplate() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("InsertAndGet", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		want := sampleRow("tub-to-shower")

		if err := s.InsertTemplate(ctx, want); err != nil {
			t.Fatalf("InsertTemplate() error = %v", err)
		}
		got, err := s.GetTemplate(ctx, "tub-to-shower")
		if err != nil {
			t.Fatalf("GetTemplate() error = %v", err)
		}
		if !reflect.DeepEqual(*got, want) {
			t.Errorf("GetTemplate() =\n%+v\nwant\n%+v", *got, want)
		}
	})

	t.Run("OptionalColumnsRoundTripEmpty", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		row := sampleRow("roof-repair")
		row.ScopeSections = nil
		row.EstimatedDays = nil
		row.Exclusions = nil
		row.Warranty = ""

		if err := s.InsertTemplate(ctx, row); err != nil {
			t.Fatalf("InsertTemplate() error = %v", err)
		}
		got, err := s.GetTemplate(ctx, "roof-repair")
		if err != nil {
			t.Fatalf("GetTemplate() error = %v", err)
		}
		if got.ScopeSections != nil || got.EstimatedDays != nil || got.Exclusions != nil {
			t.Errorf("optional columns = %+v / %v / %+v, want nil", got.ScopeSections, got.EstimatedDays, got.Exclusions)
		}
	})

	t.Run("DuplicateJobTypeID", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		if err := s.InsertTemplate(ctx, sampleRow("tub-to-shower")); err != nil {
			t.Fatalf("first InsertTemplate() error = %v", err)
		}
		err := s.InsertTemplate(ctx, sampleRow("tub-to-shower"))
		if !errors.Is(err, ErrDuplicateTemplate) {
			t.Errorf("second InsertTemplate() error = %v, want ErrDuplicateTemplate", err)
		}
	})

	t.Run("SetTemplateActivePreservesCustomization", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		row := sampleRow("tub-to-shower")
		row.IsActive = false
		row.UsageCount = 7
		row.BasePriceLow = 9000
		if err := s.InsertTemplate(ctx, row); err != nil {
			t.Fatalf("InsertTemplate() error = %v", err)
		}

		if err := s.SetTemplateActive(ctx, "tub-to-shower", true); err != nil {
			t.Fatalf("SetTemplateActive() error = %v", err)
		}
		got, err := s.GetTemplate(ctx, "tub-to-shower")
		if err != nil {
			t.Fatalf("GetTemplate() error = %v", err)
		}
		if !got.IsActive {
			t.Error("IsActive = false, want true")
		}
		if got.UsageCount != 7 || got.BasePriceLow != 9000 || got.ID != row.ID {
			t.Errorf("customized columns changed: usage=%d low=%d id=%s", got.UsageCount, got.BasePriceLow, got.ID)
		}
	})

	t.Run("SetTemplateActiveMissing", func(t *testing.T) {
		s := open(t)
		err := s.SetTemplateActive(context.Background(), "nope", true)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("SetTemplateActive() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("IncrementUsageActiveOnly", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		active := sampleRow("tub-to-shower")
		inactive := sampleRow("vanity-replacement")
		inactive.IsActive = false
		for _, r := range []types.TemplateRow{active, inactive} {
			if err := s.InsertTemplate(ctx, r); err != nil {
				t.Fatalf("InsertTemplate(%s) error = %v", r.JobTypeID, err)
			}
		}

		for i := 0; i < 3; i++ {
			if err := s.IncrementUsage(ctx, "tub-to-shower"); err != nil {
				t.Fatalf("IncrementUsage() error = %v", err)
			}
		}
		if err := s.IncrementUsage(ctx, "vanity-replacement"); !errors.Is(err, ErrNotFound) {
			t.Errorf("IncrementUsage(inactive) error = %v, want ErrNotFound", err)
		}

		got, err := s.GetTemplate(ctx, "tub-to-shower")
		if err != nil {
			t.Fatalf("GetTemplate() error = %v", err)
		}
		if got.UsageCount != 3 {
			t.Errorf("UsageCount = %d, want 3", got.UsageCount)
		}
	})

	t.Run("ListTemplatesOrdered", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		roof := sampleRow("roof-repair")
		roof.TradeID = "roofing"
		for _, r := range []types.TemplateRow{roof, sampleRow("vanity-replacement"), sampleRow("tub-to-shower")} {
			if err := s.InsertTemplate(ctx, r); err != nil {
				t.Fatalf("InsertTemplate(%s) error = %v", r.JobTypeID, err)
			}
		}

		rows, err := s.ListTemplates(ctx)
		if err != nil {
			t.Fatalf("ListTemplates() error = %v", err)
		}
		var ids []string
		for _, r := range rows {
			ids = append(ids, r.JobTypeID)
		}
		want := []string{"tub-to-shower", "vanity-replacement", "roof-repair"}
		if !reflect.DeepEqual(ids, want) {
			t.Errorf("ListTemplates() ids = %v, want %v", ids, want)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := open(t).Ping(context.Background()); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}
