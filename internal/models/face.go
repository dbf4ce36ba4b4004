package models

// FaceRectangle is the face bounding box in source image pixels.
type FaceRectangle struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EmotionScores holds per-emotion confidence in [0,1].
type EmotionScores struct {
	Anger     float64 `json:"anger"`
	Contempt  float64 `json:"contempt"`
	Disgust   float64 `json:"disgust"`
	Fear      float64 `json:"fear"`
	Happiness float64 `json:"happiness"`
	Neutral   float64 `json:"neutral"`
	Sadness   float64 `json:"sadness"`
	Surprise  float64 `json:"surprise"`
}

type FaceAttributes struct {
	Age     float64       `json:"age"`
	Gender  string        `json:"gender"`
	Emotion EmotionScores `json:"emotion"`
}

// DetectedFace is one face returned by the analysis service.
type DetectedFace struct {
	FaceID         string         `json:"faceId,omitempty"`
	FaceRectangle  FaceRectangle  `json:"faceRectangle"`
	FaceAttributes FaceAttributes `json:"faceAttributes"`
}

// Annotation is what the overlay draws for one analysis tick.
type Annotation struct {
	Rect       FaceRectangle
	Age        int
	Gender     string
	Emotion    string
	Confidence float64
	// Novel is set when this tick was the first sighting of Emotion.
	Novel bool
	// Distinct is the session-lifetime count of distinct emotions seen.
	Distinct int
}
