package tiers

import (
	"context"
	"errors"
	"strings"

	"github.com/polydev-ai/quotaengine/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Resolver attempts to classify one model identifier. The boolean reports
// whether the resolver recognized the model.
type Resolver interface {
	Resolve(ctx context.Context, modelID string) (Info, bool)
}

// Classifier maps model identifiers to cost tiers through an ordered resolver
// chain. Resolution never fails: an unrecognized model falls through to a
// synthesized normal-tier entry so billing and availability logic keep
// functioning.
type Classifier struct {
	resolvers []Resolver
}

// NewClassifier constructs a Classifier with the standard resolver order:
// in-process catalog, then the model_tiers database table.
func NewClassifier(db *gorm.DB) *Classifier {
	return &Classifier{
		resolvers: []Resolver{
			staticResolver{},
			dbResolver{db: db},
		},
	}
}

// Resolve classifies a model identifier, trying each resolver in order and
// synthesizing a normal-tier default when none recognizes it.
func (c *Classifier) Resolve(ctx context.Context, modelID string) Info {
	modelID = strings.TrimSpace(modelID)
	for _, resolver := range c.resolvers {
		if info, ok := resolver.Resolve(ctx, modelID); ok {
			return info
		}
	}

	log.WithField("model", modelID).Warn("tiers: unknown model, defaulting to normal tier")
	return Info{
		Provider:        "unknown",
		ModelID:         modelID,
		Tier:            models.TierNormal,
		DisplayName:     modelID,
		RoutingStrategy: models.RoutingAPIKey,
	}
}

// staticResolver consults the in-process catalog.
type staticResolver struct{}

func (staticResolver) Resolve(_ context.Context, modelID string) (Info, bool) {
	info, ok := catalog[modelID]
	return info, ok
}

// dbResolver consults the model_tiers table.
type dbResolver struct {
	db *gorm.DB
}

func (r dbResolver) Resolve(ctx context.Context, modelID string) (Info, bool) {
	if r.db == nil || modelID == "" {
		return Info{}, false
	}

	var row models.ModelTier
	if errFind := r.db.WithContext(ctx).
		Where("model_name = ?", modelID).
		Take(&row).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).WithField("model", modelID).Warn("tiers: model tier lookup failed")
		}
		return Info{}, false
	}

	tier := strings.TrimSpace(row.Tier)
	switch tier {
	case models.TierPremium, models.TierNormal, models.TierEco:
	default:
		tier = models.TierNormal
	}

	return Info{
		Provider:        row.Provider,
		ModelID:         row.ModelName,
		Tier:            tier,
		DisplayName:     row.DisplayName,
		CostPer1kInput:  row.CostPer1kInput,
		CostPer1kOutput: row.CostPer1kOutput,
		RoutingStrategy: row.RoutingStrategy,
	}, true
}
