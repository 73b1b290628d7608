package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"

	DefaultCategory        = "General"
	DefaultSeverity        = SeverityMedium
	DefaultConfidenceScore = 0.85
)

// Alert is a single reported safety incident.
type Alert struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID         string             `bson:"owner_id" json:"ownerId"`
	Title           string             `bson:"title" json:"title"`
	Description     string             `bson:"description" json:"description"`
	Location        string             `bson:"location" json:"location"`
	Latitude        *float64           `bson:"latitude" json:"latitude"`
	Longitude       *float64           `bson:"longitude" json:"longitude"`
	Category        string             `bson:"category" json:"category"`
	Severity        string             `bson:"severity" json:"severity"`
	ConfidenceScore float64            `bson:"confidence_score" json:"confidenceScore"`
	MediaRef        string             `bson:"media_ref,omitempty" json:"mediaRef,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// OptionalFloat distinguishes an absent value from one explicitly set to null.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// AlertPatch holds the fields an update may overwrite. Owner and creation
// time are deliberately absent.
type AlertPatch struct {
	Title       *string
	Description *string
	Location    *string
	Latitude    OptionalFloat
	Longitude   OptionalFloat
	Severity    *string
	Category    *string
	MediaRef    *string
}

// Apply copies every present field of the patch onto the alert.
func (p *AlertPatch) Apply(alert *Alert) {
	if p.Title != nil {
		alert.Title = *p.Title
	}
	if p.Description != nil {
		alert.Description = *p.Description
	}
	if p.Location != nil {
		alert.Location = *p.Location
	}
	if p.Latitude.Set {
		alert.Latitude = p.Latitude.Value
	}
	if p.Longitude.Set {
		alert.Longitude = p.Longitude.Value
	}
	if p.Severity != nil {
		alert.Severity = *p.Severity
	}
	if p.Category != nil {
		alert.Category = *p.Category
	}
	if p.MediaRef != nil {
		alert.MediaRef = *p.MediaRef
	}
}
