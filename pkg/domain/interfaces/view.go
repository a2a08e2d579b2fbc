package interfaces

import "github.com/secmon-lab/gridcore/pkg/domain/model"

// View renders a table. It is called without the table lock held and must
// not call back into the table synchronously.
type View interface {
	// RenderRows replaces the rendered rows. An empty rows slice means the no data row.
	RenderRows(columns []model.Column, rows []model.Row)
	RenderPaging(info model.PagingInfo, pages []int)
	RenderSorting(sorting model.Sorting)

	ShowLoading(msg string)
	HideLoading()

	// ShowError is the single surface of user visible failures
	ShowError(msg string)
	ShowInfo(msg string)
}
