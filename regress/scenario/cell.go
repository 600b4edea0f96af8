package scenario

import "fmt"

// Cell is one (scenario, viewport) pair, the unit of capture and compare.
type Cell struct {
	ScenarioIndex int
	ViewportIndex int
	Scenario      Scenario
	Viewport      Viewport
	File          string
}

// DuplicateCellError is returned when two cells would write the same file.
type DuplicateCellError struct {
	File string
}

func (e *DuplicateCellError) Error() string {
	return fmt.Sprintf("scenario: duplicate cell file %q", e.File)
}

// InvalidViewportError is returned for a viewport without a name or a
// positive size.
type InvalidViewportError struct {
	Viewport Viewport
}

func (e *InvalidViewportError) Error() string {
	return fmt.Sprintf("scenario: invalid viewport %q (%dx%d)", e.Viewport.Name, e.Viewport.Width, e.Viewport.Height)
}

// Cells enumerates the cross-product of scenarios (outer) and viewports
// (inner). File names must be unique across the whole run.
func Cells(scenarios []Scenario, viewports []Viewport) ([]Cell, error) {
	for _, v := range viewports {
		if v.Name == "" || v.Width <= 0 || v.Height <= 0 {
			return nil, &InvalidViewportError{Viewport: v}
		}
	}

	cells := make([]Cell, 0, len(scenarios)*len(viewports))
	seen := make(map[string]bool, cap(cells))
	for si, s := range scenarios {
		if s.URL == "" {
			return nil, fmt.Errorf("scenario: %q has no url", s.Label)
		}
		for vi, v := range viewports {
			file := FileName(s, v)
			if seen[file] {
				return nil, &DuplicateCellError{File: file}
			}
			seen[file] = true
			cells = append(cells, Cell{
				ScenarioIndex: si,
				ViewportIndex: vi,
				Scenario:      s,
				Viewport:      v,
				File:          file,
			})
		}
	}
	return cells, nil
}
