package alert

import (
	"fmt"
	"sync"

	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
)

type Alert struct {
	ProjectID   string
	ProjectName string
	Risk        task.Risk
}

func (a Alert) Title() string {
	return fmt.Sprintf("%s: %s risk", a.ProjectName, a.Risk.Type)
}

func (a Alert) Body() string {
	noun := "tasks"
	if a.Risk.Count == 1 {
		noun = "task"
	}
	return fmt.Sprintf("%d %s %s (%s severity)", a.Risk.Count, a.Risk.Type, noun, a.Risk.Severity)
}

// Tag groups repeated alerts for the same project and risk on the client.
func (a Alert) Tag() string {
	return a.ProjectID + ":" + string(a.Risk.Type)
}

// Detector reports risks that appear between two consecutive observations.
// The first observation only records a baseline.
type Detector struct {
	mu     sync.Mutex
	primed bool
	seen   map[string]map[task.RiskType]bool
}

func NewDetector() *Detector {
	return &Detector{seen: make(map[string]map[task.RiskType]bool)}
}

// Observe records the current risks and returns the ones not present in the
// previous observation of the same project. Overviews that failed to load
// keep their previous risks.
func (d *Detector) Observe(overviews []project.Overview) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	var alerts []Alert
	for _, ov := range overviews {
		if ov.Err != nil {
			continue
		}
		id := ov.Project.ID
		prev, known := d.seen[id]
		current := make(map[task.RiskType]bool, len(ov.Risks))
		for _, r := range ov.Risks {
			current[r.Type] = true
			if d.primed && (!known || !prev[r.Type]) {
				alerts = append(alerts, Alert{ProjectID: id, ProjectName: ov.Project.Name, Risk: r})
			}
		}
		d.seen[id] = current
	}
	d.primed = true
	return alerts
}
