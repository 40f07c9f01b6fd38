package dto

// CellKind tells the UI how to draw a grid cell.
type CellKind string

const (
	CellFree   CellKind = "free"
	CellSingle CellKind = "single"
	CellSplit  CellKind = "split"
)

// RenderedLesson is the compact display form of a lesson.
type RenderedLesson struct {
	ScheduleID string `json:"schedule_id"`
	Discipline string `json:"discipline"`
	Teacher    string `json:"teacher"`
	Location   string `json:"location"`
	TypeGlyph  string `json:"type_glyph"`
	LessonType string `json:"lesson_type"`
}

// GridCell is one (day, hour) intersection of a group row. In a split cell a
// nil half is the "no lesson this half" placeholder.
type GridCell struct {
	DayName  string          `json:"day"`
	HourName string          `json:"hour"`
	Kind     CellKind        `json:"kind"`
	Single   *RenderedLesson `json:"single,omitempty"`
	Upper    *RenderedLesson `json:"upper,omitempty"`
	Lower    *RenderedLesson `json:"lower,omitempty"`
}

// Actionable reports whether selecting the cell opens a schedule for editing.
func (c GridCell) Actionable() bool { return c.Kind != CellFree }

// Lessons returns the rendered lessons of the cell, top to bottom.
func (c GridCell) Lessons() []RenderedLesson {
	var out []RenderedLesson
	for _, l := range []*RenderedLesson{c.Single, c.Upper, c.Lower} {
		if l != nil {
			out = append(out, *l)
		}
	}
	return out
}

// GridColumn is a day × hour column header.
type GridColumn struct {
	DayName  string `json:"day"`
	HourName string `json:"hour"`
}

// GridRow is one schedule (group) across all columns of a shift table.
type GridRow struct {
	ScheduleID     string     `json:"schedule_id"`
	GroupName      string     `json:"group"`
	DepartmentName string     `json:"department"`
	Cells          []GridCell `json:"cells"`
}

// ShiftTable renders one hour band.
type ShiftTable struct {
	Shift   string       `json:"shift"`
	Columns []GridColumn `json:"columns"`
	Rows    []GridRow    `json:"rows"`
}

// GridSection groups the shift tables of one faculty.
type GridSection struct {
	Faculty string       `json:"faculty"`
	Tables  []ShiftTable `json:"tables"`
}

// Grid is the rendered weekly timetable.
type Grid struct {
	Sections []GridSection `json:"sections"`
}
