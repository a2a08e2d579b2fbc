package cli

import (
	"context"
	"io"

	"github.com/secmon-lab/gridcore/pkg/domain/model"
)

// ListOptions exposes the list command settings for testing
type ListOptions struct {
	BaseURL     string
	Page        int
	PageSize    int
	Sort        string
	Search      []string
	Preferences string
}

// RunList runs the list command body for testing
func RunList(ctx context.Context, w io.Writer, grid *model.Grid, opts ListOptions) error {
	return runList(ctx, w, grid, listOptions{
		baseURL:     opts.BaseURL,
		page:        opts.Page,
		pageSize:    opts.PageSize,
		sort:        opts.Sort,
		search:      opts.Search,
		preferences: opts.Preferences,
	})
}

// PickGrid is exported for testing
var PickGrid = pickGrid
