package models

import (
	"encoding/json"
	"time"
)

// PhotoPosition names the side of the vehicle a photo shows.
type PhotoPosition string

const (
	PositionLeftSide  PhotoPosition = "leftSide"
	PositionRightSide PhotoPosition = "rightSide"
	PositionFront     PhotoPosition = "front"
	PositionBack      PhotoPosition = "back"
)

// PhotoPositions is the upload order expected by the analyzer.
var PhotoPositions = []PhotoPosition{
	PositionLeftSide,
	PositionRightSide,
	PositionFront,
	PositionBack,
}

type AnalysisStatus string

const (
	AnalysisPending AnalysisStatus = "pending"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisFailed  AnalysisStatus = "failed"
)

// Findings is the damage summary derived from one analyzer result.
type Findings struct {
	Rust          string
	Dent          string
	Scratch       string
	Dust          string
	DamageClasses []string
	Masks         json.RawMessage
}

type Photo struct {
	ID               int64
	UserID           int64
	Position         PhotoPosition
	Bucket           string
	ObjectKey        string
	ContentType      string
	SizeBytes        int64
	Findings         Findings
	AnalysisStatus   AnalysisStatus
	AnalysisAttempts int
	LastUpdated      time.Time
	CreatedAt        time.Time
}
