package models

import (
	"time"

	"visionsync/backend/internal/utils"
)

// Price defines the structure for monetary values in the catalogue.
// Value is expressed in the base currency (EUR).
type Price struct {
	Value        float64 `bson:"value" json:"value"`
	CurrencyCode string  `bson:"currency_code" json:"currency_code"`
}

// Project represents a showcased studio project in the public catalogue.
type Project struct {
	Base        `bson:",inline"`
	Title       string     `bson:"title" json:"title"`
	Slug        string     `bson:"slug" json:"slug"`
	Description string     `bson:"description" json:"description"`
	Industry    string     `bson:"industry,omitempty" json:"industry,omitempty"`
	Tags        []string   `bson:"tags,omitempty" json:"tags,omitempty"`
	Price       *Price     `bson:"price,omitempty" json:"price,omitempty"`
	Images      []string   `bson:"images" json:"images"`
	Featured    bool       `bson:"featured" json:"featured"`
	IsDraft     bool       `bson:"is_draft" json:"is_draft"`
	PublishedAt *time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	Deleted     bool       `bson:"deleted" json:"-"` // Soft delete flag
}

// Template represents a sellable website/app template.
type Template struct {
	Base        `bson:",inline"`
	Name        string    `bson:"name" json:"name"`
	Slug        string    `bson:"slug" json:"slug"`
	Description string    `bson:"description" json:"description"`
	Industry    string    `bson:"industry,omitempty" json:"industry,omitempty"`
	BasePrice   Price     `bson:"base_price" json:"base_price"`
	Features    []string  `bson:"features,omitempty" json:"features,omitempty"`
	PreviewURL  string    `bson:"preview_url,omitempty" json:"preview_url,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
	Deleted     bool      `bson:"deleted" json:"-"`
}

// Industry is a catalogue filter dimension for templates and projects.
type Industry struct {
	ID   utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	Name string      `bson:"name" json:"name"`
	Slug string      `bson:"slug" json:"slug"`
}
