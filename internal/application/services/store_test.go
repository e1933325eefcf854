package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/ports"
)

var errDiskFull = errors.New("disk full")

type memRepo struct {
	mu       sync.Mutex
	data     []byte
	saves    int
	failSave bool
}

// Load and Save honour cancellation the way the network backends do.
func (r *memRepo) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return nil, entities.ErrDocumentNotFound
	}
	return append([]byte(nil), r.data...), nil
}

func (r *memRepo) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errDiskFull
	}
	r.data = append([]byte(nil), data...)
	r.saves++
	return nil
}

func (r *memRepo) Location() string { return "memory" }

func (r *memRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *memRepo) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data...)
}

func (r *memRepo) SetFail(fail bool) {
	r.mu.Lock()
	r.failSave = fail
	r.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequenceTokens() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%08X", n)
	}
}

func newTestStore(t *testing.T, repo *memRepo) (*Store, *clock) {
	t.Helper()
	clk := newClock()
	s := NewStore(repo, nil, WithClock(clk.Now), WithTokenSource(sequenceTokens()))
	require.NoError(t, s.Init(context.Background()))
	return s, clk
}

// recordSections collects change notifications.
func recordSections(s *Store) *[]entities.Section {
	var (
		mu  sync.Mutex
		got []entities.Section
	)
	s.Bus().Subscribe(func(section entities.Section) {
		mu.Lock()
		got = append(got, section)
		mu.Unlock()
	})
	return &got
}

func TestInit_FreshInstall(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)

	assert.Equal(t, 1, repo.Saves())
	assert.Len(t, s.GetMaterials(), 3)
	assert.Len(t, s.GetMSDSDocuments(), 2)
	assert.Empty(t, s.GetEquipmentData())
	assert.Empty(t, s.GetFolders())
	assert.Equal(t, "light", s.GetSettings()["theme"])

	data := repo.Bytes()
	assert.True(t, bytes.HasPrefix(data, []byte("{\n    \"project_info\"")), string(data[:40]))
	assert.True(t, bytes.Contains(data, []byte("水")), "non-ASCII text is written literally")
}

func TestInit_Idempotent(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, 1, repo.Saves())
}

func TestInit_LegacyDocument(t *testing.T) {
	repo := &memRepo{data: []byte(`{
		"project_info": {"design_unit": "Acme", "project_name": "PJ-2024-01", "calculator": "Alice"},
		"folders": ["Work", "Work", {"name": "Home"}],
		"equipment": [{"equipment_id": "EQ_OLD", "design_pressure": "NT"}],
		"todos": [{"id": 4, "text": "call", "created_at": "2024-01-01T08:00:00"}]
	}`)}
	s, _ := newTestStore(t, repo)

	assert.Equal(t, 0, repo.Saves(), "loading an existing document does not write it")
	assert.Equal(t, entities.ProjectInfo{
		CompanyName:   "Acme",
		ProjectNumber: "PJ-2024-01",
		ProjectName:   "PJ-2024-01",
	}, s.GetProjectInfo())

	legacy, ok := s.GetLegacyProjectInfo()
	require.True(t, ok)
	assert.Equal(t, "Alice", legacy.Calculator)

	assert.Equal(t, []string{"Work", "Home"}, s.GetFolders())

	eq, ok := s.GetEquipmentByID("EQ_OLD")
	require.True(t, ok)
	assert.Zero(t, eq.DesignPressure)

	todos := s.GetTodos()
	require.Len(t, todos, 1)
	assert.Equal(t, 4, todos[0].ID)
	assert.Equal(t, "call", todos[0].Str("text"))

	added, err := s.AddTodo(context.Background(), map[string]any{"text": "next"})
	require.NoError(t, err)
	assert.Equal(t, 5, added.ID)
}

func TestInit_CorruptDocument(t *testing.T) {
	repo := &memRepo{data: []byte(`{"todos": [`)}
	s, _ := newTestStore(t, repo)

	assert.Equal(t, 0, repo.Saves())
	assert.Len(t, s.GetMaterials(), 3)

	require.NoError(t, s.AddFolder(context.Background(), "Work"))
	assert.Equal(t, 1, repo.Saves())
}

func TestInit_MistypedValuesKeepData(t *testing.T) {
	const todo = `"todos": [{"id": 1, "text": "keep me"}]`
	tests := []struct {
		name  string
		doc   string
		check func(t *testing.T, s *Store)
	}{
		{
			name: "count stored as text",
			doc:  `{"report_counter": {"date": "20240601", "count": "3"}, ` + todo + `}`,
			check: func(t *testing.T, s *Store) {
				assert.Equal(t, entities.ReportCounter{Date: "20240601", Count: 3}, s.GetReportCounter())
			},
		},
		{
			name: "project number stored as a number",
			doc:  `{"project_info": {"company_name": "Acme", "project_number": 2024}, ` + todo + `}`,
			check: func(t *testing.T, s *Store) {
				assert.Equal(t, "2024", s.GetProjectInfo().ProjectNumber)
				assert.Equal(t, "Acme", s.GetProjectInfo().CompanyName)
			},
		},
		{
			name: "numeric name translation",
			doc:  `{"equipment_name_mapping": {"泵": 7, "塔": "Tower"}, ` + todo + `}`,
			check: func(t *testing.T, s *Store) {
				assert.Equal(t, map[string]string{"泵": "7", "塔": "Tower"}, s.GetEquipmentNameMapping())
			},
		},
		{
			name: "numeric legacy calculator",
			doc:  `{"_legacy_project_info": {"calculator": 5}, ` + todo + `}`,
			check: func(t *testing.T, s *Store) {
				legacy, ok := s.GetLegacyProjectInfo()
				require.True(t, ok)
				assert.Equal(t, "5", legacy.Calculator)
			},
		},
		{
			name: "folder without a name",
			doc:  `{"folders": [{"name": null}, {"name": "Work", "color": "red"}], ` + todo + `}`,
			check: func(t *testing.T, s *Store) {
				assert.Equal(t, []string{"Work"}, s.GetFolders())
			},
		},
		{
			name: "settings not an object",
			doc:  `{"settings": "dark", ` + todo + `}`,
			check: func(t *testing.T, s *Store) {
				assert.NotNil(t, s.GetSettings())
			},
		},
		{
			name: "entries that are not objects",
			doc:  `{"todos": [{"id": 1, "text": "keep me"}, 5, "x"], "process_design": {"equipment": [7, {"equipment_id": "E1"}]}}`,
			check: func(t *testing.T, s *Store) {
				require.Len(t, s.GetEquipmentData(), 1)
				assert.Equal(t, "E1", s.GetEquipmentData()[0].EquipmentID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memRepo{data: []byte(tt.doc)}
			s, _ := newTestStore(t, repo)

			todos := s.GetTodos()
			require.Len(t, todos, 1)
			assert.Equal(t, "keep me", todos[0].Str("text"))
			tt.check(t, s)

			_, err := s.AddTodo(context.Background(), map[string]any{"text": "next"})
			require.NoError(t, err)
			assert.Contains(t, string(repo.Bytes()), `"keep me"`)
		})
	}
}

func TestInit_CancelledContext(t *testing.T) {
	repo := &memRepo{data: []byte(`{"todos": [{"id": 1, "text": "keep me"}]}`)}
	s := NewStore(repo, nil, WithClock(newClock().Now), WithTokenSource(sequenceTokens()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Init(ctx))
	require.Len(t, s.GetTodos(), 1)

	_, err := s.AddTodo(ctx, map[string]any{"text": "next"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Saves())
	data := string(repo.Bytes())
	assert.Contains(t, data, `"keep me"`)
	assert.Contains(t, data, `"next"`)
}

func TestInit_RootNotObject(t *testing.T) {
	repo := &memRepo{data: []byte(`[1, 2, 3]`)}
	s, _ := newTestStore(t, repo)

	assert.Len(t, s.GetMSDSDocuments(), 2)
}

func TestRoundTrip_ByteStable(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()

	require.NoError(t, s.AddFolder(ctx, "Work"))
	_, err := s.AddNote(ctx, map[string]any{"title": "<b>Plan</b>", "folder": "Work", "tags": []any{"a", "b"}})
	require.NoError(t, err)
	_, err = s.AddEquipment(ctx, map[string]any{"name": "泵", "design_pressure": "1.6", "design_temperature": 120})
	require.NoError(t, err)
	first := repo.Bytes()

	reloaded, _ := newTestStore(t, &memRepo{data: first})
	snapshot, err := reloaded.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(snapshot))
	assert.True(t, bytes.Contains(first, []byte("<b>Plan</b>")))

	// Values written by older versions are saved back as they were read.
	base, err := newStoreSnapshot(t)
	require.NoError(t, err)
	legacy := strings.NewReplacer(
		`"equipment": []`, `"equipment": [{"equipment_id": "E1", "name": "P-101", "unique_code": "", "design_pressure": 0.0, "design_temperature": 250.0}]`,
		`"streams": []`, `"streams": [], "pumps": [{"pump_id": "P1"}]`,
		`"todos": []`, `"todos": [{"id": 1, "text": "old", "created_at": null}]`,
	).Replace(string(base))
	require.NotEqual(t, string(base), legacy)

	loaded, _ := newTestStore(t, &memRepo{data: []byte(legacy)})
	snapshot, err = loaded.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, legacy, string(snapshot))
	assert.Contains(t, string(snapshot), `"design_pressure": 0.0`)
	assert.Contains(t, string(snapshot), `"design_temperature": 250.0`)
	assert.Contains(t, string(snapshot), `"created_at": null`)

	// Editing a value writes it in canonical form and leaves the rest alone.
	require.NoError(t, loaded.UpdateEquipment(ctx, "E1", map[string]any{"design_pressure": "1.6"}))
	eq, ok := loaded.GetEquipmentByID("E1")
	require.True(t, ok)
	assert.Equal(t, entities.Measure(1.6), eq.DesignPressure)
	snapshot, err = loaded.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), `"design_pressure": 1.6`)
	assert.Contains(t, string(snapshot), `"design_temperature": 250.0`)
	assert.Contains(t, string(snapshot), `"unique_code": ""`)
	assert.NotContains(t, string(snapshot), `"created_at": ""`)
}

func newStoreSnapshot(t *testing.T) ([]byte, error) {
	t.Helper()
	s, _ := newTestStore(t, &memRepo{})
	return s.Snapshot()
}

func TestRoundTrip_UnknownSectionsKept(t *testing.T) {
	repo := &memRepo{data: []byte(`{"plugin_state": {"enabled": true, "level": 3}, "todos": []}`)}
	s, _ := newTestStore(t, repo)

	require.NoError(t, s.AddFolder(context.Background(), "Work"))
	data := string(repo.Bytes())
	assert.Contains(t, data, `"plugin_state": {`)
	assert.Contains(t, data, `"level": 3`)

	value, ok, err := s.Section("plugin_state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, value.(map[string]any)["enabled"])
}

func TestEntities_AddUpdateDelete(t *testing.T) {
	repo := &memRepo{}
	s, clk := newTestStore(t, repo)
	ctx := context.Background()

	a, err := s.AddTodo(ctx, map[string]any{"text": "a", "id": 99, "created_at": "bogus"})
	require.NoError(t, err)
	b, err := s.AddTodo(ctx, map[string]any{"text": "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, "2024-06-01T09:00:00", a.CreatedAt.String())
	assert.NotContains(t, a.Fields, "id")

	require.NoError(t, s.UpdateTodo(ctx, 1, map[string]any{"done": true, "id": 7}))
	got, ok := s.Get(entities.KindTodos, 1)
	require.True(t, ok)
	assert.Equal(t, true, got.Fields["done"])
	assert.Nil(t, got.UpdatedAt, "only notes track updated_at")

	err = s.UpdateTodo(ctx, 42, map[string]any{"done": true})
	assert.ErrorIs(t, err, entities.ErrRecordNotFound)

	require.NoError(t, s.DeleteTodo(ctx, 2))
	c, err := s.AddTodo(ctx, map[string]any{"text": "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.ID, "ids continue from the largest remaining id")

	saves := repo.Saves()
	require.NoError(t, s.DeleteTodo(ctx, 404))
	assert.Equal(t, saves+1, repo.Saves(), "deleting an absent id still saves")

	clk.Advance(time.Hour)
	note, err := s.AddNote(ctx, map[string]any{"title": "n"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateNote(ctx, note.ID, map[string]any{"title": "m"}))
	updated, _ := s.Get(entities.KindNotes, note.ID)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, "2024-06-01T10:00:00", updated.UpdatedAt.String())
}

func TestEntities_UnknownKind(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	_, err := s.Add(ctx, "invoices", nil)
	assert.ErrorIs(t, err, entities.ErrUnknownKind)
	assert.ErrorIs(t, s.Update(ctx, "invoices", 1, nil), entities.ErrUnknownKind)
	assert.ErrorIs(t, s.Delete(ctx, "invoices", 1), entities.ErrUnknownKind)
	assert.Nil(t, s.All("invoices"))
}

func TestEntities_AllKinds(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	for _, kind := range entities.EntityKinds {
		rec, err := s.Add(ctx, kind, map[string]any{"label": string(kind)})
		require.NoError(t, err, kind)
		assert.Equal(t, 1, rec.ID, kind)
		assert.Len(t, s.All(kind), 1, kind)
	}

	assert.Len(t, s.GetBookmarks(), 1)
	assert.Len(t, s.GetBirthdays(), 1)
	assert.Len(t, s.GetHolidays(), 1)
	assert.Len(t, s.GetAnniversaries(), 1)
	assert.Len(t, s.GetCountdowns(), 1)
	assert.Len(t, s.GetCustomCountdownButtons(), 1)
	assert.Len(t, s.GetPomodoroSessions(), 1)
}

func TestGettersReturnCopies(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	_, err := s.AddTodo(ctx, map[string]any{"text": "original"})
	require.NoError(t, err)

	todos := s.GetTodos()
	todos[0].Fields["text"] = "changed"
	settings := s.GetSettings()
	settings["theme"] = "dark"
	materials := s.GetMaterials()
	materials[0]["name"] = "MUD"

	assert.Equal(t, "original", s.GetTodos()[0].Str("text"))
	assert.Equal(t, "light", s.GetSettings()["theme"])
	assert.Equal(t, "WATER", s.GetMaterials()[0]["name"])
}

func TestEquipment_Upsert(t *testing.T) {
	s, clk := newTestStore(t, &memRepo{})
	ctx := context.Background()

	first, err := s.AddEquipment(ctx, map[string]any{"name": "Pump", "unique_code": "P-101", "design_pressure": "N/A"})
	require.NoError(t, err)
	second, err := s.AddEquipment(ctx, map[string]any{"name": "Drum", "design_temperature": "--"})
	require.NoError(t, err)

	assert.Equal(t, "EQ_00000001", first.EquipmentID)
	assert.Equal(t, "EQ_00000002", second.EquipmentID)
	assert.Zero(t, first.DesignPressure)
	assert.Zero(t, second.DesignTemperature)

	clk.Advance(time.Minute)
	replaced, err := s.AddEquipment(ctx, map[string]any{"equipment_id": first.EquipmentID, "name": "Pump B", "design_pressure": 2.5})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt.String(), replaced.CreatedAt.String())
	assert.Equal(t, "2024-06-01T09:01:00", replaced.UpdatedAt.String())

	list := s.GetEquipmentData()
	require.Len(t, list, 2)
	assert.Equal(t, "Pump B", list[0].Str("name"), "a replaced item keeps its position")
	assert.Equal(t, entities.Measure(2.5), list[0].DesignPressure)
	assert.Empty(t, list[0].UniqueCode, "replacement drops fields not given")

	byCode, ok := s.GetEquipmentByUniqueCode("P-101")
	assert.False(t, ok)
	assert.Empty(t, byCode.EquipmentID)
}

func TestEquipment_UpdateDelete(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	eq, err := s.AddEquipment(ctx, map[string]any{"name": "Pump", "unique_code": "P-101"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateEquipment(ctx, eq.EquipmentID, map[string]any{"design_pressure": "0.8", "equipment_id": "EQ_X"}))
	got, ok := s.GetEquipmentByUniqueCode("P-101")
	require.True(t, ok)
	assert.Equal(t, eq.EquipmentID, got.EquipmentID)
	assert.Equal(t, entities.Measure(0.8), got.DesignPressure)

	assert.ErrorIs(t, s.UpdateEquipment(ctx, "EQ_NONE", nil), entities.ErrEquipmentNotFound)
	require.NoError(t, s.DeleteEquipment(ctx, eq.EquipmentID))
	assert.ErrorIs(t, s.DeleteEquipment(ctx, eq.EquipmentID), entities.ErrEquipmentNotFound)
	assert.Empty(t, s.GetEquipmentData())
}

func TestDesignItems(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	stream, err := s.AddStream(ctx, map[string]any{"name": "Feed"})
	require.NoError(t, err)
	assert.Equal(t, "STR_00000001", stream["stream_id"])

	require.NoError(t, s.UpdateStream(ctx, "STR_00000001", map[string]any{"flow": 12, "stream_id": "STR_OTHER"}))
	streams := s.GetStreams()
	require.Len(t, streams, 1)
	assert.Equal(t, "STR_00000001", streams[0]["stream_id"])
	assert.EqualValues(t, 12, streams[0]["flow"])

	water, err := s.AddMaterial(ctx, map[string]any{"material_id": "MAT_WATER", "name": "H2O"})
	require.NoError(t, err)
	assert.Equal(t, "H2O", water["name"])
	materials := s.GetMaterials()
	require.Len(t, materials, 3)
	assert.Equal(t, "MAT_WATER", materials[0]["material_id"])

	_, ok := s.GetMSDSDocument("MSDS_ETHANOL")
	assert.True(t, ok)
	require.NoError(t, s.DeleteMSDSDocument(ctx, "MSDS_ETHANOL"))
	assert.ErrorIs(t, s.DeleteMSDSDocument(ctx, "MSDS_ETHANOL"), entities.ErrRecordNotFound)

	_, err = s.AddProject(ctx, map[string]any{"project_id": "PRJ_1"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.UpdateProject(ctx, "PRJ_2", nil), entities.ErrRecordNotFound)
}

func TestFolders(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()

	require.NoError(t, s.AddFolder(ctx, "Work"))
	require.NoError(t, s.AddFolder(ctx, "Home"))

	saves := repo.Saves()
	assert.ErrorIs(t, s.AddFolder(ctx, "Work"), entities.ErrFolderExists)
	assert.ErrorIs(t, s.AddFolder(ctx, "  "), entities.ErrValidation)
	assert.Equal(t, saves, repo.Saves())
	assert.Equal(t, []string{"Work", "Home"}, s.GetFolders())

	note, err := s.AddNote(ctx, map[string]any{"title": "plan", "folder": "Work"})
	require.NoError(t, err)

	require.NoError(t, s.RenameFolder(ctx, "Work", "Office"))
	got, _ := s.Get(entities.KindNotes, note.ID)
	assert.Equal(t, "Office", got.Str("folder"))
	assert.Equal(t, []string{"Office", "Home"}, s.GetFolders())

	assert.ErrorIs(t, s.RenameFolder(ctx, "Office", "Home"), entities.ErrFolderExists)
	assert.ErrorIs(t, s.RenameFolder(ctx, "Missing", "Other"), entities.ErrFolderNotFound)

	require.NoError(t, s.DeleteFolder(ctx, "Office"))
	got, _ = s.Get(entities.KindNotes, note.ID)
	assert.Equal(t, entities.UncategorizedFolder, got.Str("folder"))
	assert.Equal(t, []string{"Home"}, s.GetFolders())

	saves = repo.Saves()
	require.NoError(t, s.DeleteFolder(ctx, "Nowhere"))
	assert.Equal(t, saves+1, repo.Saves())
}

func TestNextReportNumber(t *testing.T) {
	repo := &memRepo{}
	s, clk := newTestStore(t, repo)
	ctx := context.Background()

	first, err := s.NextReportNumber(ctx, "CALC")
	require.NoError(t, err)
	second, err := s.NextReportNumber(ctx, "QA")
	require.NoError(t, err)

	assert.Equal(t, "CALC-20240601-001", first)
	assert.Equal(t, "QA-20240601-002", second)

	clk.Advance(24 * time.Hour)
	third, err := s.NextReportNumber(ctx, "CALC")
	require.NoError(t, err)
	assert.Equal(t, "CALC-20240602-001", third)
	assert.Equal(t, entities.ReportCounter{Date: "20240602", Count: 1}, s.GetReportCounter())

	reloaded, _ := newTestStore(t, &memRepo{data: repo.Bytes()})
	assert.Equal(t, entities.ReportCounter{Date: "20240602", Count: 1}, reloaded.GetReportCounter())
}

func TestNextReportNumber_SaveFails(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	repo.SetFail(true)

	number, err := s.NextReportNumber(context.Background(), "CALC")
	assert.ErrorIs(t, err, entities.ErrPersist)
	assert.Empty(t, number)
	assert.Equal(t, 1, s.GetReportCounter().Count, "the counter advanced in memory")
}

func TestProjectInfoAndSettings(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	require.NoError(t, s.UpdateProjectInfo(ctx, entities.ProjectInfo{CompanyName: "Acme", ProjectName: "Unit 3"}))
	require.NoError(t, s.UpdateProjectInfo(ctx, entities.ProjectInfo{ProjectNumber: "P-7"}))
	assert.Equal(t, entities.ProjectInfo{ProjectNumber: "P-7"}, s.GetProjectInfo())

	require.NoError(t, s.UpdateSettings(ctx, map[string]any{"language": "zh"}))
	_, ok := s.GetSetting("theme")
	assert.False(t, ok, "settings are replaced, not merged")
	require.NoError(t, s.SetSetting(ctx, "theme", "dark"))
	value, ok := s.GetSetting("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", value)

	require.NoError(t, s.UpdateSettings(ctx, nil))
	assert.NotNil(t, s.GetSettings())

	require.NoError(t, s.SaveCustomHolidays(ctx, map[string]any{"2024-10-01": "National Day"}))
	assert.Equal(t, "National Day", s.GetCustomHolidays()["2024-10-01"])
}

func TestFlowDiagram(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()

	_, ok := s.LoadFlowDiagram()
	assert.False(t, ok)

	require.NoError(t, s.SaveFlowDiagram(ctx, map[string]any{"nodes": []any{"P-101"}, "edges": []any{}}))
	diagram, ok := s.LoadFlowDiagram()
	require.True(t, ok)
	assert.JSONEq(t, `{"nodes": ["P-101"], "edges": []}`, string(diagram))

	value, ok, err := s.Section("flow_diagram")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, value)

	assert.ErrorIs(t, s.SaveFlowDiagram(ctx, func() {}), entities.ErrValidation)
}

func TestEquipmentNameMapping(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()

	require.NoError(t, s.AddEquipmentNameMapping(ctx, "泵", "Pump"))
	require.NoError(t, s.AddEquipmentNameMapping(ctx, "泵", "Centrifugal pump"))
	assert.Equal(t, "Centrifugal pump", s.LookupEquipmentName("泵"))
	assert.Equal(t, map[string]string{"泵": "Centrifugal pump"}, s.GetEquipmentNameMapping())

	require.NoError(t, s.RemoveEquipmentNameMapping(ctx, "泵"))
	assert.Empty(t, s.LookupEquipmentName("泵"))

	saves := repo.Saves()
	require.NoError(t, s.RemoveEquipmentNameMapping(ctx, "阀"))
	assert.Equal(t, saves, repo.Saves(), "removing an absent mapping saves nothing")
}

func TestSection(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	require.NoError(t, s.AddFolder(context.Background(), "Work"))

	materials, ok, err := s.Section("materials")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, materials, 3)

	folders, ok, err := s.Section("folders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, folders, 1)

	_, ok, err = s.Section("invoices")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotifications(t *testing.T) {
	s, _ := newTestStore(t, &memRepo{})
	ctx := context.Background()
	got := recordSections(s)

	require.NoError(t, s.AddFolder(ctx, "Work"))
	require.NoError(t, s.DeleteFolder(ctx, "Work"))
	_, err := s.AddEquipment(ctx, map[string]any{"name": "Pump"})
	require.NoError(t, err)
	_, err = s.NextReportNumber(ctx, "CALC")
	require.NoError(t, err)
	assert.Error(t, s.AddFolder(ctx, ""))

	assert.Equal(t, []entities.Section{
		entities.SectionFolders,
		entities.SectionFolders, entities.SectionNotes,
		entities.SectionEquipment,
		entities.SectionReportCounter,
	}, *got)
}

func TestSaveFailure_NoRollbackNoNotify(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()
	got := recordSections(s)
	repo.SetFail(true)

	err := s.AddFolder(ctx, "Work")
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrPersist)
	assert.ErrorIs(t, err, errDiskFull)

	var persistErr *entities.PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "add folder", persistErr.Op)

	rec, err := s.AddTodo(ctx, map[string]any{"text": "kept"})
	assert.ErrorIs(t, err, entities.ErrPersist)
	assert.Equal(t, 1, rec.ID)

	assert.Equal(t, []string{"Work"}, s.GetFolders())
	assert.Len(t, s.GetTodos(), 1)
	assert.Empty(t, *got)

	repo.SetFail(false)
	require.NoError(t, s.AddFolder(ctx, "Home"))
	reloaded, _ := newTestStore(t, &memRepo{data: repo.Bytes()})
	assert.Equal(t, []string{"Work", "Home"}, reloaded.GetFolders(), "the next save writes earlier changes")
}

func TestInit_NewDocumentSaveFails(t *testing.T) {
	repo := &memRepo{failSave: true}
	s := NewStore(repo, nil)

	require.NoError(t, s.Init(context.Background()))
	assert.Len(t, s.GetMaterials(), 3)
}

func TestPanicBecomesInternalError(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	got := recordSections(s)

	err := s.apply(context.Background(), "explode", func(*entities.Document) ([]entities.Section, error) {
		panic("boom")
	})
	assert.ErrorIs(t, err, entities.ErrInternal)
	assert.Equal(t, 1, repo.Saves())
	assert.Empty(t, *got)

	require.NoError(t, s.AddFolder(context.Background(), "Work"), "the store stays usable")
}

func TestBatch(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()
	got := recordSections(s)

	err := s.Batch(ctx, func() error {
		if _, err := s.AddTodo(ctx, map[string]any{"text": "a"}); err != nil {
			return err
		}
		if _, err := s.AddTodo(ctx, map[string]any{"text": "b"}); err != nil {
			return err
		}
		if err := s.AddFolder(ctx, "Work"); err != nil {
			return err
		}
		assert.Empty(t, *got, "nothing is announced inside a batch")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.Saves(), "init plus one batch save")
	assert.Equal(t, []entities.Section{entities.SectionTodos, entities.SectionFolders}, *got)
}

func TestBatch_Nested(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()

	err := s.Batch(ctx, func() error {
		return s.Batch(ctx, func() error {
			return s.AddFolder(ctx, "Work")
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.Saves())
}

func TestBatch_ErrorAndPanic(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()
	sentinel := errors.New("stop")

	err := s.Batch(ctx, func() error {
		require.NoError(t, s.AddFolder(ctx, "Work"))
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, repo.Saves(), "changes made before the error are still saved")

	err = s.Batch(ctx, func() error {
		require.NoError(t, s.AddFolder(ctx, "Home"))
		panic("boom")
	})
	assert.ErrorIs(t, err, entities.ErrInternal)
	assert.Equal(t, 3, repo.Saves())
}

func TestBatch_SaveFails(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()
	got := recordSections(s)
	repo.SetFail(true)

	err := s.Batch(ctx, func() error {
		return s.AddFolder(ctx, "Work")
	})
	assert.ErrorIs(t, err, entities.ErrPersist)
	assert.Empty(t, *got)
}

func TestConcurrentMutations(t *testing.T) {
	repo := &memRepo{}
	s, _ := newTestStore(t, repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddTodo(ctx, map[string]any{"text": "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	todos := s.GetTodos()
	require.Len(t, todos, 20)
	seen := map[int]bool{}
	for _, todo := range todos {
		seen[todo.ID] = true
	}
	assert.Len(t, seen, 20)
	assert.Equal(t, 21, repo.Saves())
}

func TestManager_Instance(t *testing.T) {
	var (
		opened []string
		repo   = &memRepo{}
	)
	open := func(path string) (ports.DocumentRepository, error) {
		opened = append(opened, path)
		return repo, nil
	}
	m := NewManager(open, func() string { return "/resolved/tofu_data.json" }, nil)

	first, err := m.Instance(context.Background(), "")
	require.NoError(t, err)
	second, err := m.Instance(context.Background(), "/elsewhere.json")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"/resolved/tofu_data.json"}, opened)
}

func TestManager_OpenFails(t *testing.T) {
	m := NewManager(func(string) (ports.DocumentRepository, error) {
		return nil, errDiskFull
	}, nil, nil)

	s, err := m.Instance(context.Background(), "x.json")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestGeneratedIDs_GiveUpWhenTaken(t *testing.T) {
	repo := &memRepo{}
	s := NewStore(repo, nil, WithClock(newClock().Now), WithTokenSource(func() string { return "0000000A" }))
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	eq, err := s.AddEquipment(ctx, map[string]any{"name": "P-101"})
	require.NoError(t, err)
	assert.Equal(t, "EQ_0000000A", eq.EquipmentID)

	_, err = s.AddEquipment(ctx, map[string]any{"name": "P-102"})
	assert.ErrorIs(t, err, entities.ErrInternal)
	assert.Len(t, s.GetEquipmentData(), 1)

	_, err = s.AddDesignItem(ctx, Streams, map[string]any{"name": "S1"})
	require.NoError(t, err)
	_, err = s.AddDesignItem(ctx, Streams, map[string]any{"name": "S2"})
	assert.ErrorIs(t, err, entities.ErrInternal)
	assert.Len(t, s.GetStreams(), 1)

	assert.Equal(t, 3, repo.Saves())
}
