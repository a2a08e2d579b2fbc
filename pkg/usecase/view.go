package usecase

import (
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
)

// nopView is used when a table is created without a view
type nopView struct{}

var _ interfaces.View = nopView{}

func (nopView) RenderRows([]model.Column, []model.Row) {}
func (nopView) RenderPaging(model.PagingInfo, []int)   {}
func (nopView) RenderSorting(model.Sorting)            {}
func (nopView) ShowLoading(string)                     {}
func (nopView) HideLoading()                           {}
func (nopView) ShowError(string)                       {}
func (nopView) ShowInfo(string)                        {}
