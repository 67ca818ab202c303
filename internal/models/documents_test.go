package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairguard/hairguard/internal/docstore"
)

func TestAnalysisIDFor(t *testing.T) {
	assert.Equal(t, "analysis_photo_1", AnalysisIDFor("photo_1"))
}

func TestAnalysisRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	ref := docstore.UserItems(CollectionAnalysisResults, "u").Doc("analysis_p1")
	computed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	resp := AnalyzePhotoResponse{
		DensityIndex: 0.42,
		DeltaVsPrev:  0.01,
		DeltaVsBase:  0.05,
		Quality:      Quality{Score: 0.9},
		AnalysisID:   "ignored",
	}
	require.NoError(t, store.Set(ctx, ref, AnalysisData(resp, "analysis_p1", "p1", computed)))

	snap, err := store.Get(ctx, ref)
	require.NoError(t, err)

	got, ok := DecodeAnalysis(*snap)
	require.True(t, ok)
	assert.Equal(t, "analysis_p1", got.AnalysisID)
	assert.Equal(t, "p1", got.PhotoID)
	assert.InDelta(t, 0.42, got.DensityIndex, 1e-12)
	assert.Equal(t, []string{}, got.Quality.Warnings)
	assert.True(t, computed.Equal(got.ComputedAt))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestDecodeAnalysis_NonNumeric(t *testing.T) {
	snap := docstore.Snapshot{Data: docstore.Data{"densityIndex": "0.4"}}
	_, ok := DecodeAnalysis(snap)
	assert.False(t, ok)
}

func TestDecodeFoodRequest_Schemas(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)

	v1 := docstore.Snapshot{
		Ref: docstore.UserItems(CollectionFoodRequests, "u").Doc("old"),
		Data: docstore.Data{
			"createdAt":    created,
			"query":        "レバー",
			"items":        []any{map[string]any{"name": "レバー", "why": "鉄"}},
			"shoppingList": []any{"レバー"},
		},
	}
	v2 := docstore.Snapshot{
		Ref: docstore.UserItems(CollectionFoodRequests, "u").Doc("new"),
		Data: docstore.Data{
			"createdAt":       "not a timestamp",
			"query":           "卵",
			"recommendations": []any{map[string]any{"name": "卵", "why": "タンパク質"}},
			"items":           []any{map[string]any{"name": "stale", "why": ""}},
			"stores": []any{map[string]any{
				"name": "スーパーA", "distanceM": float64(150), "confidence": 0.85, "note": "n",
			}},
			"shoppingList": []any{"卵"},
		},
	}

	assert.Equal(t, FoodSchemaV1, FoodSchemaVersion(v1))
	assert.Equal(t, FoodSchemaV2, FoodSchemaVersion(v2))

	old := DecodeFoodRequest(v1, now)
	assert.Equal(t, "old", old.ID)
	assert.Equal(t, created, old.CreatedAt)
	require.Len(t, old.Items, 1)
	assert.Equal(t, "レバー", old.Items[0].Name)

	cur := DecodeFoodRequest(v2, now)
	assert.Equal(t, now, cur.CreatedAt)
	require.Len(t, cur.Items, 1)
	assert.Equal(t, "卵", cur.Items[0].Name)
	require.Len(t, cur.Stores, 1)
	require.NotNil(t, cur.Stores[0].DistanceM)
	assert.Equal(t, 150, *cur.Stores[0].DistanceM)

	nullRecs := docstore.Snapshot{
		Ref: docstore.UserItems(CollectionFoodRequests, "u").Doc("null"),
		Data: docstore.Data{
			"createdAt":       created,
			"recommendations": nil,
			"items":           []any{map[string]any{"name": "卵", "why": "w"}},
		},
	}
	assert.Equal(t, FoodSchemaV1, FoodSchemaVersion(nullRecs))
	fallback := DecodeFoodRequest(nullRecs, now)
	require.Len(t, fallback.Items, 1)
	assert.Equal(t, "卵", fallback.Items[0].Name)
}

func TestFoodRequestData(t *testing.T) {
	d := 120
	acc := 40.0
	data := FoodRequestData("q", &Location{Lat: 1, Lng: 2, AccuracyM: &acc},
		[]FoodItem{{Name: "卵", Why: "w"}},
		[]StoreCandidate{{Name: "s", DistanceM: &d, Confidence: 0.8}, {Name: "t"}},
		nil)

	assert.Equal(t, FoodSchemaV2, data["schemaVersion"])
	assert.Len(t, data["recommendations"], 1)
	assert.Equal(t, []string{}, data["shoppingList"])
	stores := data["stores"].([]any)
	assert.Nil(t, stores[1].(docstore.Data)["distanceM"])
}

func TestIsPersona(t *testing.T) {
	assert.True(t, IsPersona(AgentCoach))
	assert.False(t, IsPersona(AgentOrchestrator))
}
