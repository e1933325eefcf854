package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors
var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrRecordNotFound    = errors.New("record not found")
	ErrEquipmentNotFound = errors.New("equipment not found")
	ErrFolderExists      = errors.New("folder already exists")
	ErrFolderNotFound    = errors.New("folder not found")
	ErrUnknownKind       = errors.New("unknown entity kind")
	ErrValidation        = errors.New("validation failed")
	ErrPersist           = errors.New("persist document")
	ErrInternal          = errors.New("internal data error")
)

// PersistError reports a save that failed after the in-memory document was
// already changed.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: persist document: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersist) match any PersistError.
func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// UncategorizedFolder receives notes whose folder is deleted.
const UncategorizedFolder = "未分类"

// Section names a top-level part of the document, or one of the process-design
// collections, for change notifications.
type Section string

const (
	SectionProjectInfo            Section = "project_info"
	SectionReportCounter          Section = "report_counter"
	SectionSettings               Section = "settings"
	SectionProcessDesign          Section = "process_design"
	SectionEquipmentNameMapping   Section = "equipment_name_mapping"
	SectionFolders                Section = "folders"
	SectionTodos                  Section = "todos"
	SectionNotes                  Section = "notes"
	SectionBookmarks              Section = "bookmarks"
	SectionBirthdays              Section = "birthdays"
	SectionHolidays               Section = "holidays"
	SectionAnniversaries          Section = "anniversaries"
	SectionCountdowns             Section = "countdowns"
	SectionCustomCountdownButtons Section = "custom_countdown_buttons"
	SectionPomodoroSessions       Section = "pomodoro_sessions"
	SectionCustomHolidays         Section = "custom_holidays"

	SectionEquipment     Section = "equipment"
	SectionMaterials     Section = "materials"
	SectionMSDSDocuments Section = "msds_documents"
	SectionProjects      Section = "projects"
	SectionStreams       Section = "streams"
	SectionFlowDiagram   Section = "flow_diagram"
)

func (s Section) String() string { return string(s) }

// EntityKind identifies a generic id-keyed collection.
type EntityKind string

const (
	KindTodos                  EntityKind = "todos"
	KindNotes                  EntityKind = "notes"
	KindBookmarks              EntityKind = "bookmarks"
	KindBirthdays              EntityKind = "birthdays"
	KindHolidays               EntityKind = "holidays"
	KindAnniversaries          EntityKind = "anniversaries"
	KindCountdowns             EntityKind = "countdowns"
	KindCustomCountdownButtons EntityKind = "custom_countdown_buttons"
	KindPomodoroSessions       EntityKind = "pomodoro_sessions"
)

// EntityKinds lists every generic collection in document order.
var EntityKinds = []EntityKind{
	KindTodos, KindNotes, KindBookmarks, KindBirthdays, KindHolidays,
	KindAnniversaries, KindCountdowns, KindCustomCountdownButtons, KindPomodoroSessions,
}

func (k EntityKind) IsValid() bool {
	for _, known := range EntityKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Section returns the notification section for the collection.
func (k EntityKind) Section() Section { return Section(k) }

// ProjectInfo is the fixed-shape project header shared by calculators.
type ProjectInfo struct {
	CompanyName    string `json:"company_name"`
	ProjectNumber  string `json:"project_number"`
	ProjectName    string `json:"project_name"`
	SubprojectName string `json:"subproject_name"`
}

// UnmarshalJSON reads non-string values as their text, so a project number
// stored as 2024 becomes "2024".
func (p *ProjectInfo) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	*p = ProjectInfo{
		CompanyName:    stringValue(m["company_name"]),
		ProjectNumber:  stringValue(m["project_number"]),
		ProjectName:    stringValue(m["project_name"]),
		SubprojectName: stringValue(m["subproject_name"]),
	}
	return nil
}

// LegacyProjectInfo keeps values of the old project_info layout that have no
// place in the current one.
type LegacyProjectInfo struct {
	Calculator string `json:"calculator,omitempty"`
	Reviewer   string `json:"reviewer,omitempty"`
}

func (l *LegacyProjectInfo) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	*l = LegacyProjectInfo{
		Calculator: stringValue(m["calculator"]),
		Reviewer:   stringValue(m["reviewer"]),
	}
	return nil
}

// ReportCounter is the process-wide daily report sequence.
type ReportCounter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// UnmarshalJSON accepts a count stored as text. A count that is not a number
// reads as 0, which restarts the day's sequence.
func (c *ReportCounter) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	count, _ := intValue(m["count"])
	*c = ReportCounter{Date: stringValue(m["date"]), Count: count}
	return nil
}

// NameMapping translates Chinese equipment names to English ones.
type NameMapping map[string]string

// UnmarshalJSON reads non-string translations as their text.
func (n *NameMapping) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	if m == nil {
		*n = nil
		return nil
	}
	out := make(NameMapping, len(m))
	for k, v := range m {
		out[k] = stringValue(v)
	}
	*n = out
	return nil
}

// Folder is a note folder. Keys other than name and created_at are kept in
// Fields.
type Folder struct {
	Name      string
	CreatedAt *Timestamp
	Fields    Attributes
}

func (f Folder) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Fields)+2)
	for k, v := range f.Fields {
		out[k] = normalizeValue(v)
	}
	out["name"] = f.Name
	if f.CreatedAt != nil {
		out[FieldCreatedAt] = *f.CreatedAt
	}
	return marshalNoEscape(out)
}

func (f *Folder) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	folder := Folder{Name: stringValue(m["name"])}
	for k, v := range m {
		switch k {
		case "name":
		case FieldCreatedAt:
			ts := timestampValue(v)
			folder.CreatedAt = &ts
		default:
			if folder.Fields == nil {
				folder.Fields = Attributes{}
			}
			folder.Fields[k] = v
		}
	}
	*f = folder
	return nil
}

// ProcessDesign groups the chemical process data.
type ProcessDesign struct {
	Projects           []Attributes    `json:"projects"`
	Materials          []Attributes    `json:"materials"`
	Equipment          []Equipment     `json:"equipment"`
	MSDSDocuments      []Attributes    `json:"msds_documents"`
	Streams            []Attributes    `json:"streams"`
	FlowDiagram        json.RawMessage `json:"flow_diagram,omitempty"`
	FlowDiagramUpdated *Timestamp      `json:"flow_diagram_updated,omitempty"`

	// Extra holds process-design keys this version does not know about.
	Extra map[string]json.RawMessage `json:"-"`

	repairs []string
}

type processDesignAlias ProcessDesign

var processDesignKeys = map[string]bool{
	"projects": true, "materials": true, "equipment": true, "msds_documents": true,
	"streams": true, "flow_diagram": true, "flow_diagram_updated": true,
}

// UnmarshalJSON decodes each list element on its own. Elements that are not
// objects are dropped and reported through the owning Document's Repairs.
func (p *ProcessDesign) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	var pd ProcessDesign
	for key, raw := range all {
		path := "process_design." + key
		switch key {
		case "projects":
			pd.Projects = decodeList[Attributes](path, raw, &pd.repairs)
		case "materials":
			pd.Materials = decodeList[Attributes](path, raw, &pd.repairs)
		case "equipment":
			pd.Equipment = decodeList[Equipment](path, raw, &pd.repairs)
		case "msds_documents":
			pd.MSDSDocuments = decodeList[Attributes](path, raw, &pd.repairs)
		case "streams":
			pd.Streams = decodeList[Attributes](path, raw, &pd.repairs)
		case "flow_diagram":
			pd.FlowDiagram = append(json.RawMessage(nil), raw...)
		case "flow_diagram_updated":
			var ts Timestamp
			if err := ts.UnmarshalJSON(raw); err != nil {
				return err
			}
			pd.FlowDiagramUpdated = &ts
		default:
			if pd.Extra == nil {
				pd.Extra = make(map[string]json.RawMessage)
			}
			pd.Extra[key] = raw
		}
	}
	*p = pd
	return nil
}

func (p ProcessDesign) MarshalJSON() ([]byte, error) {
	body, err := marshalNoEscape(processDesignAlias(p))
	if err != nil {
		return nil, err
	}
	return appendExtra(body, p.Extra, processDesignKeys)
}

// Document is the whole persisted application state.
type Document struct {
	ProjectInfo            ProjectInfo        `json:"project_info"`
	ReportCounter          ReportCounter      `json:"report_counter"`
	Settings               Attributes         `json:"settings"`
	ProcessDesign          ProcessDesign      `json:"process_design"`
	EquipmentNameMapping   NameMapping        `json:"equipment_name_mapping"`
	Folders                []Folder           `json:"folders"`
	Todos                  []Record           `json:"todos"`
	Notes                  []Record           `json:"notes"`
	Bookmarks              []Record           `json:"bookmarks"`
	Birthdays              []Record           `json:"birthdays"`
	Holidays               []Record           `json:"holidays"`
	Anniversaries          []Record           `json:"anniversaries"`
	Countdowns             []Record           `json:"countdowns"`
	CustomCountdownButtons []Record           `json:"custom_countdown_buttons"`
	PomodoroSessions       []Record           `json:"pomodoro_sessions"`
	CustomHolidays         Attributes         `json:"custom_holidays"`
	LegacyProjectInfo      *LegacyProjectInfo `json:"_legacy_project_info,omitempty"`

	// Extra holds top-level sections this version does not know about.
	Extra map[string]json.RawMessage `json:"-"`

	// Repairs lists the values that could not be read and were dropped or
	// reset while decoding.
	Repairs []string `json:"-"`
}

type documentAlias Document

var documentKeys = map[string]bool{
	"project_info": true, "report_counter": true, "settings": true, "process_design": true,
	"equipment_name_mapping": true, "folders": true, "todos": true, "notes": true,
	"bookmarks": true, "birthdays": true, "holidays": true, "anniversaries": true,
	"countdowns": true, "custom_countdown_buttons": true, "pomodoro_sessions": true,
	"custom_holidays": true, "_legacy_project_info": true,
}

// UnmarshalJSON decodes every section on its own so that one malformed value
// costs only that value. Unknown sections are kept in Extra.
func (d *Document) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	var doc Document
	for key, raw := range all {
		if !documentKeys[key] {
			if doc.Extra == nil {
				doc.Extra = make(map[string]json.RawMessage)
			}
			doc.Extra[key] = raw
			continue
		}
		doc.decodeSection(key, raw)
	}
	sort.Strings(doc.Repairs)
	*d = doc
	return nil
}

func (d *Document) decodeSection(key string, raw json.RawMessage) {
	if kind := EntityKind(key); kind.IsValid() {
		*d.Collection(kind) = decodeList[Record](key, raw, &d.Repairs)
		return
	}
	var target any
	switch key {
	case "project_info":
		target = &d.ProjectInfo
	case "report_counter":
		target = &d.ReportCounter
	case "settings":
		target = &d.Settings
	case "custom_holidays":
		target = &d.CustomHolidays
	case "equipment_name_mapping":
		target = &d.EquipmentNameMapping
	case "_legacy_project_info":
		var legacy *LegacyProjectInfo
		if err := json.Unmarshal(raw, &legacy); err != nil {
			d.Repairs = append(d.Repairs, fmt.Sprintf("%s: %v", key, err))
			return
		}
		d.LegacyProjectInfo = legacy
		return
	case "folders":
		d.Folders = decodeList[Folder](key, raw, &d.Repairs)
		return
	case "process_design":
		target = &d.ProcessDesign
	}
	if err := json.Unmarshal(raw, target); err != nil {
		d.Repairs = append(d.Repairs, fmt.Sprintf("%s: %v", key, err))
	}
	d.Repairs = append(d.Repairs, d.ProcessDesign.repairs...)
	d.ProcessDesign.repairs = nil
}

// decodeList decodes the elements of a JSON array one by one, skipping those
// that do not decode. A value that is not an array yields an empty list.
func decodeList[T any](path string, raw json.RawMessage, repairs *[]string) []T {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		*repairs = append(*repairs, fmt.Sprintf("%s: not a list", path))
		return nil
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			*repairs = append(*repairs, fmt.Sprintf("%s[%d]: %v", path, i, err))
			continue
		}
		out = append(out, v)
	}
	return out
}

// MarshalJSON writes known sections in schema order followed by Extra sorted
// by key.
func (d Document) MarshalJSON() ([]byte, error) {
	body, err := marshalNoEscape(documentAlias(d))
	if err != nil {
		return nil, err
	}
	return appendExtra(body, d.Extra, documentKeys)
}

// appendExtra adds the extra keys of an object to its encoded body, sorted.
func appendExtra(body []byte, extra map[string]json.RawMessage, known map[string]bool) ([]byte, error) {
	keys := make([]string, 0, len(extra))
	for key := range extra {
		if !known[key] {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return body, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(bytes.TrimSuffix(body, []byte("}")))
	for _, key := range keys {
		name, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Normalize replaces nil collections with empty ones so that every section is
// written out.
func (d *Document) Normalize() {
	if d.Settings == nil {
		d.Settings = Attributes{}
	}
	if d.CustomHolidays == nil {
		d.CustomHolidays = Attributes{}
	}
	if d.EquipmentNameMapping == nil {
		d.EquipmentNameMapping = NameMapping{}
	}
	if d.Folders == nil {
		d.Folders = []Folder{}
	}
	for _, kind := range EntityKinds {
		list := d.Collection(kind)
		if *list == nil {
			*list = []Record{}
		}
	}
	pd := &d.ProcessDesign
	if pd.Projects == nil {
		pd.Projects = []Attributes{}
	}
	if pd.Materials == nil {
		pd.Materials = []Attributes{}
	}
	if pd.Equipment == nil {
		pd.Equipment = []Equipment{}
	}
	if pd.MSDSDocuments == nil {
		pd.MSDSDocuments = []Attributes{}
	}
	if pd.Streams == nil {
		pd.Streams = []Attributes{}
	}
}

// Collection returns a pointer to the list backing a generic entity kind.
// It panics on an unknown kind; callers validate with IsValid first.
func (d *Document) Collection(kind EntityKind) *[]Record {
	switch kind {
	case KindTodos:
		return &d.Todos
	case KindNotes:
		return &d.Notes
	case KindBookmarks:
		return &d.Bookmarks
	case KindBirthdays:
		return &d.Birthdays
	case KindHolidays:
		return &d.Holidays
	case KindAnniversaries:
		return &d.Anniversaries
	case KindCountdowns:
		return &d.Countdowns
	case KindCustomCountdownButtons:
		return &d.CustomCountdownButtons
	case KindPomodoroSessions:
		return &d.PomodoroSessions
	}
	panic(fmt.Sprintf("entities: unknown entity kind %q", kind))
}

// FolderNames returns folder names in stored order.
func (d *Document) FolderNames() []string {
	names := make([]string, 0, len(d.Folders))
	for _, f := range d.Folders {
		names = append(names, f.Name)
	}
	return names
}

// HasFolder reports whether a folder with exactly this name exists.
func (d *Document) HasFolder(name string) bool {
	for _, f := range d.Folders {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ContainsDigit reports whether s has at least one decimal digit.
func ContainsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
