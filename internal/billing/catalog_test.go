package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gymdesk/internal/types"
)

func TestStaticCatalog_FeaturesPerTier(t *testing.T) {
	catalog := NewStaticCatalog()

	basico := catalog.Features(types.PlanBasico)
	assert.False(t, basico.Has(types.FeatureVisionLab))
	assert.False(t, basico.Has(types.FeatureMultiBranch))
	assert.False(t, basico.Has(types.FeatureAIRoutines))
	assert.False(t, basico.Has(types.FeatureAdvancedReports))

	pro := catalog.Features(types.PlanPro)
	assert.True(t, pro.Has(types.FeatureVisionLab))
	assert.True(t, pro.Has(types.FeatureMultiBranch))
	assert.True(t, pro.Has(types.FeatureAIRoutines))
	assert.False(t, pro.Has(types.FeatureAdvancedReports))

	elite := catalog.Features(types.PlanElite)
	assert.True(t, elite.Has(types.FeatureVisionLab))
	assert.True(t, elite.Has(types.FeatureMultiBranch))
	assert.True(t, elite.Has(types.FeatureAIRoutines))
	assert.True(t, elite.Has(types.FeatureAdvancedReports))
}

func TestStaticCatalog_UnknownPlanFailsClosed(t *testing.T) {
	catalog := NewStaticCatalog()

	features := catalog.Features(types.PlanCode("premium_legacy"))
	assert.False(t, features.Has(types.FeatureVisionLab))
	assert.False(t, features.Has(types.FeatureAdvancedReports))

	allotments := catalog.Allotments(types.PlanCode("premium_legacy"))
	for _, usage := range types.AllUsageTypes {
		assert.Zero(t, allotments[usage], "unknown plan must grant no %s quota", usage)
	}
}

func TestStaticCatalog_Allotments(t *testing.T) {
	catalog := NewStaticCatalog()

	basico := catalog.Allotments(types.PlanBasico)
	assert.Equal(t, 3, basico[types.UsageRoutineGeneration])
	assert.Equal(t, 5, basico[types.UsageNutritionAnalysis])
	assert.Zero(t, basico[types.UsageVisionAnalysis], "Básico has no vision entitlement")
	assert.Equal(t, 10, basico[types.UsageAIChat])

	elite := catalog.Allotments(types.PlanElite)
	for _, usage := range types.AllUsageTypes {
		assert.Equal(t, types.UnlimitedSentinel, elite[usage])
	}
}
