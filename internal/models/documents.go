package models

import (
	"time"

	"github.com/hairguard/hairguard/internal/docstore"
)

// Field maps written to and read from the document store. Readers are
// lenient: a missing or mistyped field decodes to its zero value.

// PhotoData is the photo record written at upload time.
func PhotoData(storagePath, capturedAt string) docstore.Data {
	return docstore.Data{
		"storagePath": storagePath,
		"capturedAt":  capturedAt,
		"createdAt":   docstore.ServerTimestamp,
		"status":      PhotoUploaded,
	}
}

// DecodePhoto reads a photo record.
func DecodePhoto(s docstore.Snapshot) Photo {
	created, _ := s.Time("createdAt")
	return Photo{
		ID:          s.Ref.ID,
		StoragePath: s.String("storagePath"),
		CapturedAt:  s.String("capturedAt"),
		CreatedAt:   created,
		Status:      s.String("status"),
		Error:       s.String("error"),
	}
}

// QualityData encodes a quality block.
func QualityData(q Quality) docstore.Data {
	warnings := q.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return docstore.Data{"score": q.Score, "warnings": warnings}
}

func decodeQuality(v any) Quality {
	m, _ := v.(map[string]any)
	score, _ := docstore.Number(m["score"])
	warnings := docstore.Strings(m["warnings"])
	if warnings == nil {
		warnings = []string{}
	}
	return Quality{Score: score, Warnings: warnings}
}

// AnalysisData is the analysis result written by the check-in flow: the
// server response merged with the validated id, photo id and computed-at time.
func AnalysisData(resp AnalyzePhotoResponse, analysisID, photoID string, computedAt time.Time) docstore.Data {
	return docstore.Data{
		"densityIndex": resp.DensityIndex,
		"deltaVsPrev":  resp.DeltaVsPrev,
		"deltaVsBase":  resp.DeltaVsBase,
		"quality":      QualityData(resp.Quality),
		"analysisId":   analysisID,
		"photoId":      photoID,
		"computedAt":   computedAt,
		"createdAt":    docstore.ServerTimestamp,
	}
}

// Data encodes a result as written by the agent API.
func (r AnalysisResult) Data() docstore.Data {
	data := docstore.Data{
		"analysisId":   r.AnalysisID,
		"photoId":      r.PhotoID,
		"densityIndex": r.DensityIndex,
		"deltaVsPrev":  r.DeltaVsPrev,
		"deltaVsBase":  r.DeltaVsBase,
		"quality":      QualityData(r.Quality),
		"method":       r.Method,
		"computedAt":   docstore.ServerTimestamp,
	}
	if !r.ComputedAt.IsZero() {
		data["computedAt"] = r.ComputedAt
	}
	if r.ROI != nil {
		data["roi"] = docstore.Data{"x": r.ROI.X, "y": r.ROI.Y, "w": r.ROI.W, "h": r.ROI.H}
	}
	return data
}

// DecodeAnalysis reads an analysis result. ok is false when densityIndex is
// not numeric.
func DecodeAnalysis(s docstore.Snapshot) (AnalysisResult, bool) {
	density, ok := s.Number("densityIndex")
	prev, _ := s.Number("deltaVsPrev")
	base, _ := s.Number("deltaVsBase")
	computed, _ := s.Time("computedAt")
	created, _ := s.Time("createdAt")

	r := AnalysisResult{
		AnalysisID:   s.String("analysisId"),
		PhotoID:      s.String("photoId"),
		DensityIndex: density,
		DeltaVsPrev:  prev,
		DeltaVsBase:  base,
		Quality:      decodeQuality(s.Data["quality"]),
		Method:       s.String("method"),
		ComputedAt:   computed,
		CreatedAt:    created,
	}
	if r.AnalysisID == "" {
		r.AnalysisID = s.Ref.ID
	}
	if roi, isMap := s.Data["roi"].(map[string]any); isMap {
		x, _ := docstore.Number(roi["x"])
		y, _ := docstore.Number(roi["y"])
		w, _ := docstore.Number(roi["w"])
		h, _ := docstore.Number(roi["h"])
		r.ROI = &ROI{X: x, Y: y, W: w, H: h}
	}
	return r, ok
}

// Food request documents went through two schemas: v1 stored the
// recommendation list under "items", v2 stores it under "recommendations".
const (
	FoodSchemaV1 = 1
	FoodSchemaV2 = 2
)

// FoodRequestData encodes a request in the current (v2) schema.
func FoodRequestData(query string, loc *Location, items []FoodItem, stores []StoreCandidate, shoppingList []string) docstore.Data {
	recs := make([]any, 0, len(items))
	for _, item := range items {
		recs = append(recs, docstore.Data{"name": item.Name, "why": item.Why})
	}
	candidates := make([]any, 0, len(stores))
	for _, st := range stores {
		c := docstore.Data{"name": st.Name, "confidence": st.Confidence, "note": st.Note, "distanceM": nil}
		if st.DistanceM != nil {
			c["distanceM"] = *st.DistanceM
		}
		candidates = append(candidates, c)
	}
	var location any
	if loc != nil {
		l := docstore.Data{"lat": loc.Lat, "lng": loc.Lng, "accuracyM": nil}
		if loc.AccuracyM != nil {
			l["accuracyM"] = *loc.AccuracyM
		}
		location = l
	}
	if shoppingList == nil {
		shoppingList = []string{}
	}
	return docstore.Data{
		"createdAt":       docstore.ServerTimestamp,
		"query":           query,
		"location":        location,
		"recommendations": recs,
		"stores":          candidates,
		"shoppingList":    shoppingList,
		"schemaVersion":   FoodSchemaV2,
	}
}

// FoodSchemaVersion detects which schema a food request was written with.
func FoodSchemaVersion(s docstore.Snapshot) int {
	if v, ok := s.Data["recommendations"]; ok && v != nil {
		return FoodSchemaV2
	}
	if v, ok := s.Data["items"]; ok && v != nil {
		return FoodSchemaV1
	}
	if v, ok := s.Number("schemaVersion"); ok {
		return int(v)
	}
	return FoodSchemaV2
}

// DecodeFoodRequest reads a food request of either schema. createdAt falls
// back to now when it is not a structured timestamp.
func DecodeFoodRequest(s docstore.Snapshot, now time.Time) FoodRequest {
	created, ok := s.Time("createdAt")
	if !ok {
		created = now
	}

	listField := "recommendations"
	if FoodSchemaVersion(s) == FoodSchemaV1 {
		listField = "items"
	}

	var items []FoodItem
	for _, m := range docstore.Maps(s.Data[listField]) {
		name, _ := m["name"].(string)
		why, _ := m["why"].(string)
		items = append(items, FoodItem{Name: name, Why: why})
	}

	var stores []StoreCandidate
	for _, m := range docstore.Maps(s.Data["stores"]) {
		st := StoreCandidate{}
		st.Name, _ = m["name"].(string)
		st.Note, _ = m["note"].(string)
		st.Confidence, _ = docstore.Number(m["confidence"])
		if d, ok := docstore.Number(m["distanceM"]); ok {
			di := int(d)
			st.DistanceM = &di
		}
		stores = append(stores, st)
	}

	var loc *Location
	if m, ok := s.Data["location"].(map[string]any); ok {
		lat, _ := docstore.Number(m["lat"])
		lng, _ := docstore.Number(m["lng"])
		loc = &Location{Lat: lat, Lng: lng}
		if acc, ok := docstore.Number(m["accuracyM"]); ok {
			loc.AccuracyM = &acc
		}
	}

	return FoodRequest{
		ID:           s.Ref.ID,
		CreatedAt:    created,
		Query:        s.String("query"),
		Location:     loc,
		Items:        items,
		Stores:       stores,
		ShoppingList: docstore.Strings(s.Data["shoppingList"]),
	}
}
