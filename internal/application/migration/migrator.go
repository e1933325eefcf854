// Package migration upgrades a freshly loaded raw document to the current
// schema. Every step is idempotent: running the migrator on its own output
// changes nothing.
package migration

import (
	"fmt"

	"github.com/tofu-suite/tofu/internal/domain/entities"
)

// Raw is the untyped document as decoded from storage.
type Raw = map[string]any

// Step is a single idempotent upgrade. Apply reports whether it changed raw.
type Step struct {
	Name  string
	Apply func(raw Raw) bool
}

// Report lists the steps that changed the document.
type Report struct {
	Applied []string
}

// Changed reports whether any step modified the document.
func (r Report) Changed() bool { return len(r.Applied) > 0 }

// Migrator runs its steps in order.
type Migrator struct {
	steps []Step
}

// New returns a migrator with the standard steps.
func New() *Migrator {
	return &Migrator{steps: DefaultSteps()}
}

// NewWithSteps returns a migrator running exactly the given steps.
func NewWithSteps(steps ...Step) *Migrator {
	return &Migrator{steps: steps}
}

// DefaultSteps are the schema upgrades in the order they must run.
func DefaultSteps() []Step {
	return []Step{
		{Name: "project_info", Apply: MigrateProjectInfo},
		{Name: "process_design", Apply: BackfillProcessDesign},
		{Name: "equipment", Apply: ConsolidateEquipment},
		{Name: "folders", Apply: NormalizeFolders},
	}
}

// Run applies every step to raw in place.
func (m *Migrator) Run(raw Raw) Report {
	var report Report
	for _, step := range m.steps {
		if step.Apply(raw) {
			report.Applied = append(report.Applied, step.Name)
		}
	}
	return report
}

// MergeDefaults copies every top-level section of defaults that raw lacks.
// It returns the names of the sections it added.
func MergeDefaults(raw, defaults Raw) []string {
	var added []string
	for key, value := range defaults {
		if _, ok := raw[key]; ok {
			continue
		}
		raw[key] = value
		added = append(added, key)
	}
	return added
}

var legacyProjectInfoKeys = []string{"design_unit", "calculator", "reviewer"}

// MigrateProjectInfo rewrites the old {design_unit, project_name, calculator,
// reviewer} layout. The old layout is recognised by its own field names, which
// the new layout never carries.
func MigrateProjectInfo(raw Raw) bool {
	info, ok := raw["project_info"].(map[string]any)
	if !ok {
		return false
	}
	legacy := false
	for _, key := range legacyProjectInfoKeys {
		if _, ok := info[key]; ok {
			legacy = true
			break
		}
	}
	if !legacy {
		return false
	}

	projectName := asString(info["project_name"])
	projectNumber := ""
	if entities.ContainsDigit(projectName) {
		projectNumber = projectName
	}
	raw["project_info"] = map[string]any{
		"company_name":    asString(info["design_unit"]),
		"project_number":  projectNumber,
		"project_name":    projectName,
		"subproject_name": "",
	}

	side := map[string]any{}
	if existing, ok := raw["_legacy_project_info"].(map[string]any); ok {
		side = existing
	}
	if v, ok := info["calculator"]; ok {
		side["calculator"] = asString(v)
	}
	if v, ok := info["reviewer"]; ok {
		side["reviewer"] = asString(v)
	}
	if len(side) > 0 {
		raw["_legacy_project_info"] = side
	}
	return true
}

var processDesignLists = []string{"projects", "materials", "equipment", "msds_documents", "streams"}

// BackfillProcessDesign makes sure process_design and its five lists exist.
// Existing lists are never touched.
func BackfillProcessDesign(raw Raw) bool {
	changed := false
	pd, ok := raw["process_design"].(map[string]any)
	if !ok {
		pd = map[string]any{}
		raw["process_design"] = pd
		changed = true
	}
	for _, key := range processDesignLists {
		if _, ok := pd[key].([]any); ok {
			continue
		}
		pd[key] = []any{}
		changed = true
	}
	return changed
}

// ConsolidateEquipment moves the legacy top-level equipment list into
// process_design.equipment. Records whose id is already present there are
// dropped; the process_design copy wins.
func ConsolidateEquipment(raw Raw) bool {
	legacyValue, ok := raw["equipment"]
	if !ok {
		return false
	}
	delete(raw, "equipment")

	legacy, _ := legacyValue.([]any)
	pd, ok := raw["process_design"].(map[string]any)
	if !ok {
		pd = map[string]any{}
		raw["process_design"] = pd
	}
	current, _ := pd["equipment"].([]any)
	if current == nil {
		current = []any{}
	}

	seen := make(map[string]bool, len(current))
	for _, item := range current {
		if rec, ok := item.(map[string]any); ok {
			if id := asString(rec[entities.FieldEquipmentID]); id != "" {
				seen[id] = true
			}
		}
	}
	for _, item := range legacy {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := asString(rec[entities.FieldEquipmentID])
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		current = append(current, rec)
	}
	pd["equipment"] = current
	return true
}

// NormalizeFolders turns legacy plain-string folders into {name} objects and
// drops entries that are neither, as well as repeated names.
func NormalizeFolders(raw Raw) bool {
	value, ok := raw["folders"]
	if !ok {
		return false
	}
	list, ok := value.([]any)
	if !ok {
		raw["folders"] = []any{}
		return true
	}
	changed := false
	seen := make(map[string]bool, len(list))
	out := make([]any, 0, len(list))
	for _, item := range list {
		var folder map[string]any
		switch f := item.(type) {
		case string:
			folder = map[string]any{"name": f}
			changed = true
		case map[string]any:
			if _, isString := f["name"].(string); !isString {
				changed = true
				continue
			}
			folder = f
		default:
			changed = true
			continue
		}
		name := folder["name"].(string)
		if seen[name] {
			changed = true
			continue
		}
		seen[name] = true
		out = append(out, folder)
	}
	if changed {
		raw["folders"] = out
	}
	return changed
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}
