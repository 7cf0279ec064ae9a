package repository

import (
	"context"

	"github.com/Borislavv/notion-widget-cache/pkg/model"
)

// WidgetRepository resolves public slugs into widget records.
// A missing widget is (nil, nil), errors are reserved for storage failures.
type WidgetRepository interface {
	GetBySlug(ctx context.Context, slug string) (*model.Widget, error)
}
