// Package report holds the penguin report table: the last fetched rows, the
// client-side id filter, row selection and the exports.
package report

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"PenguinWatch.dashboard/internal/models"
)

// LoadFailedMessage is the banner shown when the table cannot be fetched.
const LoadFailedMessage = "Failed to load penguin data. Please try again later."

// Source fetches report data. *backend.Client satisfies it.
type Source interface {
	ReportTable(ctx context.Context, filter models.StatusFilter) ([]models.ReportRow, error)
	ReportSummary(ctx context.Context) (models.ReportSummary, error)
}

// Table is safe for concurrent use.
type Table struct {
	src Source

	mu       sync.Mutex
	filter   models.StatusFilter
	idFilter string
	all      []models.ReportRow
	visible  []models.ReportRow
	selected map[string]bool
	banner   string
}

func NewTable(src Source) *Table {
	return &Table{src: src, filter: models.FilterAll, selected: map[string]bool{}}
}

// Load refetches the rows for a status category. The id filter and the
// selection are reset. On failure the previous rows stay and the banner is
// set.
func (t *Table) Load(ctx context.Context, filter models.StatusFilter) error {
	rows, err := t.src.ReportTable(ctx, filter)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.banner = LoadFailedMessage
		return fmt.Errorf("load report table: %w", err)
	}
	t.banner = ""
	t.filter = filter
	t.all = rows
	t.applyIDFilter("")
	return nil
}

// Reload fetches the rows for filter, narrows them to ids containing id and
// returns the resulting view in one step, so concurrent callers never see a
// half applied filter.
func (t *Table) Reload(ctx context.Context, filter models.StatusFilter, id string) (View, error) {
	rows, err := t.src.ReportTable(ctx, filter)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.banner = LoadFailedMessage
		return t.view(), fmt.Errorf("load report table: %w", err)
	}
	t.banner = ""
	t.filter = filter
	t.all = rows
	t.applyIDFilter(id)
	return t.view(), nil
}

// FilterByID narrows the visible rows to ids containing substr, ignoring
// case. An empty substr shows every row. The selection is cleared.
func (t *Table) FilterByID(substr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applyIDFilter(substr)
}

// applyIDFilter must be called with t.mu held.
func (t *Table) applyIDFilter(substr string) {
	t.idFilter = substr
	needle := strings.ToLower(substr)
	t.visible = t.visible[:0:0]
	for _, r := range t.all {
		if needle == "" || strings.Contains(strings.ToLower(r.PenguinID), needle) {
			t.visible = append(t.visible, r)
		}
	}
	t.selected = map[string]bool{}
}

// Toggle selects or deselects one visible row.
func (t *Table) Toggle(id string, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.visible {
		if r.PenguinID == id {
			if checked {
				t.selected[id] = true
			} else {
				delete(t.selected, id)
			}
			return
		}
	}
}

// SelectAll sets every visible row to checked.
func (t *Table) SelectAll(checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selected = map[string]bool{}
	if !checked {
		return
	}
	for _, r := range t.visible {
		t.selected[r.PenguinID] = true
	}
}

// AllSelected is the derived state of the select-all checkbox.
func (t *Table) AllSelected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visible) > 0 && t.selectedCount() == len(t.visible)
}

func (t *Table) SelectedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedCount()
}

func (t *Table) selectedCount() int {
	n := 0
	for _, r := range t.visible {
		if t.selected[r.PenguinID] {
			n++
		}
	}
	return n
}

// SelectedIDs lists the selected visible rows in table order.
func (t *Table) SelectedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, r := range t.visible {
		if t.selected[r.PenguinID] {
			ids = append(ids, r.PenguinID)
		}
	}
	return ids
}

// SelectedText is empty when nothing is selected.
func (t *Table) SelectedText() string {
	n := t.SelectedCount()
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d penguins selected", n)
}

func (t *Table) CountText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("Showing %d of %d penguins", len(t.visible), len(t.all))
}

func (t *Table) Banner() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.banner
}

func (t *Table) Filter() models.StatusFilter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// Visible returns the raw rows currently shown.
func (t *Table) Visible() []models.ReportRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.ReportRow(nil), t.visible...)
}

// RowView is one formatted table row.
type RowView struct {
	ID            string `json:"id"`
	LastSeen      string `json:"lastSeen"`
	CurrentWeight string `json:"currentWeight"`
	AvgWeight     string `json:"avgWeight"`
	Status        string `json:"status"`
	StatusClass   string `json:"statusClass"`
	StatusIcon    string `json:"statusIcon"`
	Notes         string `json:"notes"`
	Selected      bool   `json:"selected"`
}

// Rows formats the visible rows.
func (t *Table) Rows() []RowView {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RowView, len(t.visible))
	for i, r := range t.visible {
		out[i] = formatRow(r)
		out[i].Selected = t.selected[r.PenguinID]
	}
	return out
}

// View is the full table state as served to the report page.
type View struct {
	Filter       models.StatusFilter `json:"filter"`
	IDFilter     string              `json:"idFilter"`
	Rows         []RowView           `json:"rows"`
	CountText    string              `json:"countText"`
	SelectedText string              `json:"selectedText"`
	AllSelected  bool                `json:"allSelected"`
	Banner       string              `json:"banner,omitempty"`
}

func (t *Table) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view()
}

func (t *Table) view() View {
	v := View{
		Filter:      t.filter,
		IDFilter:    t.idFilter,
		Rows:        make([]RowView, len(t.visible)),
		CountText:   fmt.Sprintf("Showing %d of %d penguins", len(t.visible), len(t.all)),
		AllSelected: len(t.visible) > 0 && t.selectedCount() == len(t.visible),
		Banner:      t.banner,
	}
	for i, r := range t.visible {
		v.Rows[i] = formatRow(r)
		v.Rows[i].Selected = t.selected[r.PenguinID]
	}
	if n := t.selectedCount(); n > 0 {
		v.SelectedText = fmt.Sprintf("%d penguins selected", n)
	}
	return v
}

func formatRow(r models.ReportRow) RowView {
	status := strings.ToLower(r.Status)
	return RowView{
		ID:            r.PenguinID,
		LastSeen:      FormatLastSeen(r.LastSeen, r.Time),
		CurrentWeight: r.CurrentWeight.String() + " kg",
		AvgWeight:     r.AvgWeight7d.String() + " kg",
		Status:        capitalize(r.Status),
		StatusClass:   status,
		StatusIcon:    statusIcon(status),
		Notes:         r.Comments,
	}
}

var lastSeenLayouts = []string{"2006-01-02", time.RFC1123, time.RFC1123Z, time.RFC3339}

// FormatLastSeen renders "Jan 2, {time}" with 00:00 for a missing time. An
// unparseable date is kept as is.
func FormatLastSeen(date, clock string) string {
	if clock == "" {
		clock = "00:00"
	}
	day := date
	for _, layout := range lastSeenLayouts {
		if ts, err := time.Parse(layout, strings.TrimSpace(date)); err == nil {
			day = ts.Format("Jan 2")
			break
		}
	}
	return day + ", " + clock
}

func statusIcon(status string) string {
	switch status {
	case "normal":
		return "check"
	case "overweight", "underweight":
		return "exclamation"
	default:
		return ""
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SummaryView holds the preformatted summary figures.
type SummaryView struct {
	TotalPenguins string `json:"totalPenguins"`
	AvgWeight     string `json:"avgWeight"`
	Heaviest      string `json:"heaviest"`
	Lightest      string `json:"lightest"`
}

// FormatSummary renders the summary strings. A missing heaviest or lightest
// penguin yields an empty string.
func FormatSummary(s models.ReportSummary) SummaryView {
	return SummaryView{
		TotalPenguins: fmt.Sprintf("%d", s.TotalPenguins),
		AvgWeight:     s.AvgWeight7d.String() + " kg",
		Heaviest:      formatPenguinWeight(s.Heaviest),
		Lightest:      formatPenguinWeight(s.Lightest),
	}
}

func formatPenguinWeight(p models.PenguinWeight) string {
	if p.ID == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s kg)", p.ID, p.Weight.String())
}

// LoadSummary fetches and formats the summary block.
func (t *Table) LoadSummary(ctx context.Context) (SummaryView, error) {
	s, err := t.src.ReportSummary(ctx)
	if err != nil {
		return SummaryView{}, fmt.Errorf("load report summary: %w", err)
	}
	return FormatSummary(s), nil
}
