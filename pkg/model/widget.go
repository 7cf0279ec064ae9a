package model

type WidgetSettings struct {
	Title     string `json:"title,omitempty" bson:"title,omitempty"`
	Columns   int    `json:"columns,omitempty" bson:"columns,omitempty"`
	ShowTitle bool   `json:"showTitle" bson:"showTitle"`
	Theme     string `json:"theme,omitempty" bson:"theme,omitempty"`
	// PlatformFilter and StatusFilter are applied when a request does not specify its own.
	PlatformFilter string `json:"platformFilter,omitempty" bson:"platformFilter,omitempty"`
	StatusFilter   string `json:"statusFilter,omitempty" bson:"statusFilter,omitempty"`
}

// Widget binds one remote database to a public slug.
type Widget struct {
	ID         string         `json:"id"`
	Slug       string         `json:"slug"`
	Token      string         `json:"token"` // encrypted
	DatabaseID string         `json:"databaseId"`
	IsActive   bool           `json:"isActive"`
	Settings   WidgetSettings `json:"settings"`
}

// Columns maps remote database properties onto the roles a gallery needs.
type Columns struct {
	Title    string   `json:"title,omitempty"`
	Date     string   `json:"date,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Status   string   `json:"status,omitempty"`
	Media    []string `json:"media"`
}
