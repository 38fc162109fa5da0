package service

import (
	"context"
	"fmt"

	"github.com/imsantiagopoli/pilly/internal/schedule"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"go.uber.org/zap"
)

type demoMedication struct {
	name      string
	dosage    string
	frequency string
	time      string
	color     string
	category  model.Category
}

var demoMedications = []demoMedication{
	{name: "Lexapro", dosage: "10mg", frequency: "Daily", time: "08:00", color: "#ffcc00", category: model.CategoryTablet},
	{name: "Vitamin D", dosage: "2000IU", frequency: "Daily", time: "09:00", color: "#ff9500", category: model.CategoryCapsule},
	{name: "Adderall", dosage: "20mg", frequency: "Twice Daily", time: "13:00", color: "#ff3b30", category: model.CategoryTablet},
	{name: "Magnesium", dosage: "500mg", frequency: "Daily", time: "21:00", color: "#5856d6", category: model.CategoryOther},
}

// SeedDemo adds the demo medications when the store holds none, returning
// how many were added
func (t *Tracker) SeedDemo(ctx context.Context) (int, error) {
	existing, err := t.meds.List(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("failed to list medications: %w", err)
	}
	if len(existing) > 0 {
		t.logger.Info("skipping demo seed, medications already present", zap.Int("count", len(existing)))
		return 0, nil
	}

	for i, demo := range demoMedications {
		rule, err := schedule.ParseFrequency(demo.frequency, []model.TimeOfDay{model.MustParseTimeOfDay(demo.time)})
		if err != nil {
			return i, err
		}
		if _, err := t.AddMedication(ctx, MedicationInput{
			Name:     demo.name,
			Dosage:   demo.dosage,
			Schedule: rule,
			Color:    demo.color,
			Category: demo.category,
		}); err != nil {
			return i, err
		}
	}

	return len(demoMedications), nil
}
