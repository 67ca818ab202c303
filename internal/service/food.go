package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/models"
)

// DefaultRadiusM is the store search radius when the request names none.
const DefaultRadiusM = 800

const (
	earthRadiusM    = 6371000
	eggName         = "卵"
	eggSubstitute   = "卵（代替）"
	noteSupermarket = "惣菜/精肉があれば入手しやすい"
	noteOther       = "代替案があると安心"
)

// foodCatalog is matched in order against the request text.
var foodCatalog = []models.FoodItem{
	{Name: "レバー", Why: "鉄・ビタミンB群など（一般論）"},
	{Name: "卵", Why: "タンパク質とビオチンの補給（一般論）"},
	{Name: "ナッツ", Why: "ビタミンE・亜鉛（一般論）"},
	{Name: "鮭", Why: "タンパク質とオメガ3（一般論）"},
	{Name: "納豆", Why: "タンパク質・ミネラル（一般論）"},
	{Name: "牡蠣", Why: "亜鉛を意識しやすい（一般論）"},
	{Name: "鶏むね", Why: "高タンパクで続けやすい（一般論）"},
}

type storeKind struct {
	name       string
	dLat, dLng float64
	confidence float64
	note       string
}

// nearbyStores are placed at fixed offsets from the caller until a real
// places lookup exists.
var nearbyStores = []storeKind{
	{name: "スーパーA", dLat: 0.0012, dLng: 0.0007, confidence: 0.75, note: noteSupermarket},
	{name: "コンビニB", dLat: -0.0009, dLng: 0.0004, confidence: 0.55, note: noteOther},
	{name: "ドラッグストアC", dLat: 0.0018, dLng: -0.0006, confidence: 0.45, note: noteOther},
}

// FoodSniper suggests foods from the request text and nearby stores to buy
// them at, and records each request.
type FoodSniper struct {
	store  docstore.Store
	newID  func() string
	logger *zap.Logger
}

// NewFoodSniper returns a recommender over deps.
func NewFoodSniper(deps Deps) *FoodSniper {
	return &FoodSniper{store: deps.Store, newID: deps.NewID, logger: deps.Logger}
}

// Recommend answers one request and stores it under foodRequests.
func (f *FoodSniper) Recommend(ctx context.Context, uid string, req models.FoodSniperRequest) (*models.FoodSniperResponse, error) {
	radius := DefaultRadiusM
	if req.RadiusM != nil && *req.RadiusM != 0 {
		radius = *req.RadiusM
	}

	items := extractFoodItems(req.Message)
	stores := storeCandidates(req.Location, radius, items)

	shopping := make([]string, 0, len(items)+1)
	hasEgg := false
	for _, item := range items {
		shopping = append(shopping, item.Name)
		hasEgg = hasEgg || item.Name == eggName
	}
	if !hasEgg {
		shopping = append(shopping, eggSubstitute)
	}

	id := models.FoodIDPrefix + f.newID()
	ref := docstore.UserItems(models.CollectionFoodRequests, uid).Doc(id)
	if err := f.store.Set(ctx, ref, models.FoodRequestData(req.Message, req.Location, items, stores, shopping)); err != nil {
		return nil, fmt.Errorf("save food request: %w", err)
	}
	f.logger.Info("food recommendation stored",
		zap.String("uid", uid), zap.String("id", id),
		zap.Int("items", len(items)), zap.Int("stores", len(stores)))

	return &models.FoodSniperResponse{Items: items, Stores: stores, ShoppingList: shopping}, nil
}

func extractFoodItems(message string) []models.FoodItem {
	var items []models.FoodItem
	for _, item := range foodCatalog {
		if strings.Contains(message, item.Name) {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		items = []models.FoodItem{foodCatalog[1], foodCatalog[2]}
	}
	return items
}

func storeCandidates(loc *models.Location, radiusM int, items []models.FoodItem) []models.StoreCandidate {
	out := []models.StoreCandidate{}
	if loc == nil {
		return out
	}
	for _, s := range nearbyStores {
		d := haversineM(loc.Lat, loc.Lng, loc.Lat+s.dLat, loc.Lng+s.dLng)
		if d > radiusM {
			continue
		}
		out = append(out, models.StoreCandidate{
			Name:       s.name,
			DistanceM:  &d,
			Confidence: math.Min(0.9, s.confidence+0.05*float64(len(items))),
			Note:       s.note,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceM < *out[j].DistanceM })
	return out
}

// haversineM is the great-circle distance in whole metres, truncated.
func haversineM(lat1, lng1, lat2, lng2 float64) int {
	rad := math.Pi / 180
	phi1, phi2 := lat1*rad, lat2*rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lng2 - lng1) * rad

	a := math.Pow(math.Sin(dPhi/2), 2) + math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dLambda/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int(earthRadiusM * c)
}
