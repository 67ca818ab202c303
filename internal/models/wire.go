package models

// Request and response bodies of the agent API.

// AnalyzePhotoRequest is the body of POST /api/v1/photos/analyze.
type AnalyzePhotoRequest struct {
	PhotoID     string `json:"photoId"`
	StoragePath string `json:"storagePath"`
	CapturedAt  string `json:"capturedAt,omitempty"`
	ROIPreset   string `json:"roiPreset,omitempty"`
}

// AnalyzePhotoResponse is the reply of POST /api/v1/photos/analyze.
type AnalyzePhotoResponse struct {
	DensityIndex float64 `json:"densityIndex"`
	DeltaVsPrev  float64 `json:"deltaVsPrev"`
	DeltaVsBase  float64 `json:"deltaVsBase"`
	Quality      Quality `json:"quality"`
	AnalysisID   string  `json:"analysisId"`
}

// ReportGenerateRequest is the body of POST /api/v1/reports/generate.
type ReportGenerateRequest struct {
	PeriodDays *int `json:"periodDays,omitempty"`
}

// ReportGenerateResponse is the reply of POST /api/v1/reports/generate.
type ReportGenerateResponse = Report

// FoodSniperRequest is the body of POST /api/v1/food-sniper/recommend.
type FoodSniperRequest struct {
	Message  string    `json:"message"`
	Location *Location `json:"location"`
	RadiusM  *int      `json:"radiusM,omitempty"`
}

// FoodSniperResponse is the reply of POST /api/v1/food-sniper/recommend.
type FoodSniperResponse struct {
	Items        []FoodItem       `json:"items"`
	Stores       []StoreCandidate `json:"stores"`
	ShoppingList []string         `json:"shoppingList"`
}

// MentalShieldRequest is the body of POST /api/v1/mental-shield/chat.
type MentalShieldRequest struct {
	ThreadID string `json:"threadId,omitempty"`
	Message  string `json:"message"`
	Mode     string `json:"mode,omitempty"`
}

// MentalShieldResponse is the reply of POST /api/v1/mental-shield/chat.
type MentalShieldResponse struct {
	Cards    []ChatCard `json:"cards"`
	Summary  string     `json:"summary"`
	ThreadID string     `json:"threadId"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
