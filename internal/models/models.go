package models

import (
	"time"
)

// Collection names in the document store.
const (
	CollectionPhotos          = "photos"
	CollectionAnalysisResults = "analysisResults"
	CollectionFoodRequests    = "foodRequests"
	CollectionReports         = "reports"
	CollectionConversations   = "conversations"
)

// Photo status values.
const (
	PhotoUploaded = "uploaded"
	PhotoDone     = "done"
	PhotoFailed   = "failed"
)

// ID prefixes.
const (
	PhotoIDPrefix    = "photo_"
	AnalysisIDPrefix = "analysis_"
	ReportIDPrefix   = "report_"
	FoodIDPrefix     = "food_"
)

// AnalysisIDFor is the analysis id derived from a photo id.
func AnalysisIDFor(photoID string) string {
	return AnalysisIDPrefix + photoID
}

// Photo is a check-in photo record.
type Photo struct {
	ID          string    `json:"id"`
	StoragePath string    `json:"storagePath"`
	CapturedAt  string    `json:"capturedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Quality describes how usable a photo was for analysis.
type Quality struct {
	Score    float64  `json:"score"`
	Warnings []string `json:"warnings"`
}

// ROI is a region of interest normalised to the image size.
type ROI struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// AnalysisResult is the persisted outcome of one photo analysis.
type AnalysisResult struct {
	AnalysisID   string    `json:"analysisId"`
	PhotoID      string    `json:"photoId"`
	DensityIndex float64   `json:"densityIndex"`
	DeltaVsPrev  float64   `json:"deltaVsPrev"`
	DeltaVsBase  float64   `json:"deltaVsBase"`
	Quality      Quality   `json:"quality"`
	ROI          *ROI      `json:"roi,omitempty"`
	Method       string    `json:"method,omitempty"`
	ComputedAt   time.Time `json:"computedAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Location is a device position.
type Location struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	AccuracyM *float64 `json:"accuracyM,omitempty"`
}

// FoodItem is a recommended food and the reason for it.
type FoodItem struct {
	Name string `json:"name"`
	Why  string `json:"why"`
}

// StoreCandidate is a nearby shop where the items may be bought.
type StoreCandidate struct {
	Name       string  `json:"name"`
	DistanceM  *int    `json:"distanceM"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note"`
}

// FoodRequest is one persisted food-sniper request.
type FoodRequest struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"createdAt"`
	Query        string           `json:"query"`
	Location     *Location        `json:"location,omitempty"`
	Items        []FoodItem       `json:"items"`
	Stores       []StoreCandidate `json:"stores"`
	ShoppingList []string         `json:"shoppingList"`
}

// Report is a generated weekly report.
type Report struct {
	ReportID    string   `json:"reportId"`
	Highlights  []string `json:"highlights"`
	NextActions []string `json:"nextActions"`
	RawText     string   `json:"rawText"`
}

// Chat personas.
const (
	AgentEncourager   = "encourager"
	AgentCoach        = "coach"
	AgentDoctor       = "doctor"
	AgentOrchestrator = "orchestrator"
	AgentUser         = "user"
)

// Personas lists the card agents in display order.
var Personas = []string{AgentEncourager, AgentCoach, AgentDoctor}

// IsPersona reports whether agent is one of the three card personas.
func IsPersona(agent string) bool {
	for _, p := range Personas {
		if p == agent {
			return true
		}
	}
	return false
}

// ChatCard is one persona reply.
type ChatCard struct {
	Agent string `json:"agent"`
	Text  string `json:"text"`
}
