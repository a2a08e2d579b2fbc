package cli

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/secmon-lab/gridcore/pkg/domain/interfaces"
	"github.com/secmon-lab/gridcore/pkg/domain/model"
	"github.com/secmon-lab/gridcore/pkg/domain/types"
)

var (
	headerColor  = color.New(color.Bold, color.Underline)
	selectColor  = color.New(color.FgCyan, color.Bold)
	pagingColor  = color.New(color.Faint)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgGreen)
	loadingColor = color.New(color.FgYellow)
)

// terminalView renders a table as aligned text. A live view prints on every
// render; otherwise the last render is kept until Print.
type terminalView struct {
	mu   sync.Mutex
	w    io.Writer
	live bool

	columns []model.Column
	rows    []model.Row
	paging  *model.PagingInfo
	sorting model.Sorting
}

var _ interfaces.View = &terminalView{}

func newTerminalView(w io.Writer, live bool) *terminalView {
	return &terminalView{w: w, live: live}
}

func (v *terminalView) RenderRows(columns []model.Column, rows []model.Row) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.columns = columns
	v.rows = rows
	if v.live {
		v.printLocked()
	}
}

func (v *terminalView) RenderPaging(info model.PagingInfo, pages []int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paging = &info
}

func (v *terminalView) RenderSorting(sorting model.Sorting) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sorting = sorting
}

func (v *terminalView) ShowLoading(msg string) {
	if !v.live {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	loadingColor.Fprintln(v.w, msg) //nolint:errcheck
}

func (v *terminalView) HideLoading() {}

func (v *terminalView) ShowError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	errorColor.Fprintln(v.w, "error: "+msg) //nolint:errcheck
}

func (v *terminalView) ShowInfo(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	infoColor.Fprintln(v.w, msg) //nolint:errcheck
}

// Print writes the last rendered page
func (v *terminalView) Print() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.printLocked()
}

func (v *terminalView) printLocked() {
	var cols []model.Column
	for _, c := range v.columns {
		if c.Visibility != types.VisibilityHidden {
			cols = append(cols, c)
		}
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Title
		switch c.Direction {
		case types.SortAsc:
			headers[i] += " ▲"
		case types.SortDesc:
			headers[i] += " ▼"
		}
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t")) //nolint:errcheck
	for _, row := range v.rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = row.Texts[c.Name]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")) //nolint:errcheck
	}
	tw.Flush() //nolint:errcheck

	// colour is applied per line so that escape codes do not skew alignment
	header, body, _ := strings.Cut(buf.String(), "\n")
	headerColor.Fprintln(v.w, header) //nolint:errcheck
	if len(v.rows) == 0 {
		pagingColor.Fprintln(v.w, "No data available!") //nolint:errcheck
	}
	for i, line := range strings.Split(strings.TrimSuffix(body, "\n"), "\n") {
		if line == "" {
			continue
		}
		if i < len(v.rows) && v.rows[i].Selected {
			selectColor.Fprintln(v.w, line) //nolint:errcheck
			continue
		}
		fmt.Fprintln(v.w, line) //nolint:errcheck
	}

	if v.paging != nil && v.paging.TotalCount > 0 {
		pagingColor.Fprintf(v.w, "Showing %d-%d of %d (page %d/%d)\n", //nolint:errcheck
			v.paging.Start, v.paging.End, v.paging.TotalCount, v.paging.CurrentPage, v.paging.TotalPages)
	}
	if len(v.sorting) > 0 {
		pagingColor.Fprintln(v.w, "Sorted by "+v.sorting.String()) //nolint:errcheck
	}
}
