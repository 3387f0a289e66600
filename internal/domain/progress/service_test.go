package progress_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/rpggio/fieldlog/internal/domain/activity"
	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/paging"
	"github.com/rpggio/fieldlog/internal/repository"
	"github.com/rpggio/fieldlog/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *memStore
	activities *mocks.ActivityRepository
	svc        *progress.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	end := "2024-12-31"
	store := newMemStore(&project.Project{
		ID:        "p1",
		Name:      "Dermaga",
		StartDate: "2024-01-01",
		EndDate:   &end,
		Progress: project.Progress{
			project.MethodSondir: {TotalPoints: 20},
			project.MethodBor:    {TotalPoints: 10},
			project.MethodCPTU:   {TotalPoints: 5},
		},
	})

	employees := &mocks.EmployeeResolver{}
	employees.On("Resolve", mock.Anything, "user-1").Return("emp-1", nil)
	employees.On("Resolve", mock.Anything, "user-2").Return("emp-2", nil)
	employees.On("Resolve", mock.Anything, "ghost").Return("", employee.ErrEmployeeNotFound)
	employees.On("Resolve", mock.Anything, "").Return("", employee.ErrUnauthenticated)

	activities := &mocks.ActivityRepository{}
	activities.On("Log", mock.Anything, mock.Anything).Return(nil)

	svc := progress.NewService(store, memRecords{store}, memSearch{store}, store, employees, activities, nil)
	return &fixture{store: store, activities: activities, svc: svc}
}

func items(in ...progress.ItemInput) []progress.ItemInput {
	if in == nil {
		return []progress.ItemInput{}
	}
	return in
}

func item(method string, points, depth float64) progress.ItemInput {
	return progress.ItemInput{
		Method:       method,
		PointsDone:   progress.Quantity(points),
		DepthReached: progress.Quantity(depth),
	}
}

func (f *fixture) upsert(t *testing.T, actor, date string, in []progress.ItemInput) (*progress.Result, error) {
	t.Helper()
	return f.svc.Upsert(context.Background(), progress.UpsertRequest{
		ProjectID: "p1",
		ActorID:   actor,
		LocalDate: date,
		Notes:     "catatan",
		Items:     in,
	})
}

func (f *fixture) method(m project.Method) project.MethodProgress {
	return f.store.project("p1").Progress[m]
}

func TestUpsert_CreateAndIdempotentResubmit(t *testing.T) {
	f := newFixture(t)

	res, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 3, 5.5), item("bor", 1, 2)))
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	require.Equal(t, "emp-1", res.Record.AuthorID)
	require.Len(t, res.ProjectProgress, 3)
	require.Equal(t, int64(3), res.ProjectProgress[project.MethodSondir].CompletedPoints)
	require.Equal(t, 5.5, res.ProjectProgress[project.MethodSondir].MaxDepth)
	require.Equal(t, "2024-01-01", res.StartDate)
	require.Equal(t, "2024-12-31", *res.EndDate)

	again, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 3, 5.5), item("bor", 1, 2)))
	require.NoError(t, err)
	require.Equal(t, res.Record.ID, again.Record.ID)
	require.Equal(t, res.ProjectProgress, again.ProjectProgress)
}

func TestUpsert_ReplaceAppliesDifference(t *testing.T) {
	f := newFixture(t)

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 5, 3)))
	require.NoError(t, err)
	_, err = f.upsert(t, "user-2", "2024-03-01", items(item("sondir", 2, 1)))
	require.NoError(t, err)
	require.Equal(t, int64(7), f.method(project.MethodSondir).CompletedPoints)

	_, err = f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 1, 3), item("cptu", 2, 0)))
	require.NoError(t, err)
	require.Equal(t, int64(3), f.method(project.MethodSondir).CompletedPoints)
	require.Equal(t, int64(2), f.method(project.MethodCPTU).CompletedPoints)
}

func TestUpsert_ReplaceRecomputesWithdrawnMaxDepth(t *testing.T) {
	f := newFixture(t)

	_, err := f.upsert(t, "user-2", "2024-03-01", items(item("bor", 1, 7)))
	require.NoError(t, err)
	_, err = f.upsert(t, "user-1", "2024-03-02", items(item("bor", 1, 12)))
	require.NoError(t, err)
	require.Equal(t, 12.0, f.method(project.MethodBor).MaxDepth)

	res, err := f.upsert(t, "user-1", "2024-03-02", items(item("bor", 1, 4)))
	require.NoError(t, err)
	require.Equal(t, 7.0, res.ProjectProgress[project.MethodBor].MaxDepth)
	require.Equal(t, []project.Method{project.MethodBor}, res.Recomputed)
}

func TestUpsert_BoundsViolationWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("bor", 11, 1), item("cptu", 6, 1), item("sondir", 1, 1)))
	require.ErrorIs(t, err, progress.ErrBoundsViolation)

	var boundsErr *progress.BoundsError
	require.ErrorAs(t, err, &boundsErr)
	require.Equal(t, []project.Method{project.MethodBor, project.MethodCPTU}, boundsErr.Methods)
	require.Contains(t, err.Error(), "Bor, CPTU")

	require.Equal(t, project.MethodProgress{TotalPoints: 20}, f.method(project.MethodSondir))
	res, err := f.svc.Get(context.Background(), progress.GetRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Nil(t, res.Record)
}

func TestUpsert_WrappingPointSumViolatesBounds(t *testing.T) {
	f := newFixture(t)

	// 2048 * 2^53 is 2^64; a wrapping sum would leave only the trailing 3.
	in := make([]progress.ItemInput, 0, 2049)
	for i := 0; i < 2048; i++ {
		in = append(in, item("sondir", 1<<53, 0))
	}
	in = append(in, item("sondir", 3, 0))

	_, err := f.upsert(t, "user-1", "2024-03-01", in)
	var boundsErr *progress.BoundsError
	require.ErrorAs(t, err, &boundsErr)
	require.Equal(t, []project.Method{project.MethodSondir}, boundsErr.Methods)
	require.Equal(t, project.MethodProgress{TotalPoints: 20}, f.method(project.MethodSondir))

	res, err := f.svc.Get(context.Background(), progress.GetRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Nil(t, res.Record)
}

func TestTallyItems_SaturatesPoints(t *testing.T) {
	tally := progress.TallyItems([]progress.Item{
		{Method: project.MethodBor, PointsDone: math.MaxInt64 - 1, DepthReached: 2},
		{Method: project.MethodBor, PointsDone: 5, DepthReached: 4},
		{Method: project.MethodCPTU, PointsDone: 2},
	})
	require.Equal(t, progress.Tally{Points: math.MaxInt64, DepthMax: 4}, tally[project.MethodBor])
	require.Equal(t, int64(2), tally[project.MethodCPTU].Points)
}

func TestUpsert_ClearRequiresConfirmation(t *testing.T) {
	f := newFixture(t)

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 4, 9)))
	require.NoError(t, err)

	_, err = f.upsert(t, "user-1", "2024-03-01", items())
	require.ErrorIs(t, err, progress.ErrConfirmationRequired)
	require.Equal(t, int64(4), f.method(project.MethodSondir).CompletedPoints)

	res, err := f.svc.Upsert(context.Background(), progress.UpsertRequest{
		ProjectID:    "p1",
		ActorID:      "user-1",
		LocalDate:    "2024-03-01",
		Items:        items(),
		ConfirmClear: true,
	})
	require.NoError(t, err)
	require.Empty(t, res.Record.Items)
	require.Equal(t, int64(0), res.ProjectProgress[project.MethodSondir].CompletedPoints)
	require.Equal(t, 0.0, res.ProjectProgress[project.MethodSondir].MaxDepth)

	f.activities.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeProgressCleared
	}))
}

func TestUpsert_EmptyItemsOnNewRecordNeedsNoConfirmation(t *testing.T) {
	f := newFixture(t)

	res, err := f.upsert(t, "user-1", "2024-03-01", items(item("laser", 3, 3)))
	require.NoError(t, err)
	require.Empty(t, res.Record.Items)
}

func TestUpsert_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upsert(t, "user-1", "2024-13-40", items())
	require.ErrorIs(t, err, progress.ErrInvalidInput)

	_, err = f.upsert(t, "user-1", "yesterday", items())
	require.ErrorIs(t, err, progress.ErrInvalidDate)

	_, err = f.upsert(t, "user-1", "2024-03-01", nil)
	require.ErrorIs(t, err, progress.ErrItemsRequired)

	_, err = f.upsert(t, "user-1", "2023-12-31", items())
	require.ErrorIs(t, err, progress.ErrOutOfRange)
	require.ErrorIs(t, err, progress.ErrBeforeStart)

	_, err = f.upsert(t, "user-1", "2025-01-01", items())
	require.ErrorIs(t, err, progress.ErrAfterEnd)

	_, err = f.upsert(t, "ghost", "2024-03-01", items())
	require.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	_, err = f.upsert(t, "", "2024-03-01", items())
	require.ErrorIs(t, err, employee.ErrUnauthenticated)

	_, err = f.svc.Upsert(ctx, progress.UpsertRequest{ProjectID: "nope", ActorID: "user-1", LocalDate: "2024-03-01", Items: items()})
	require.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestUpsert_InsertConflictIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.store.insertErr = repository.ErrConflict

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 1, 1)))
	require.ErrorIs(t, err, progress.ErrConflict)
	require.Equal(t, int64(0), f.method(project.MethodSondir).CompletedPoints)
}

func TestGet_ReturnsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("cptu", 2, 8)))
	require.NoError(t, err)

	res, err := f.svc.Get(ctx, progress.GetRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	require.Equal(t, "catatan", res.Record.Notes)

	res, err = f.svc.Get(ctx, progress.GetRequest{ProjectID: "p1", ActorID: "user-2", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Nil(t, res.Record)
	require.Equal(t, int64(2), res.ProjectProgress[project.MethodCPTU].CompletedPoints)

	_, err = f.svc.Get(ctx, progress.GetRequest{ProjectID: "nope", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestDelete_WithdrawsPointsAndRecomputesDepth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 4, 15), item("bor", 2, 1)))
	require.NoError(t, err)
	_, err = f.upsert(t, "user-2", "2024-03-01", items(item("sondir", 3, 9)))
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.ProjectProgress[project.MethodSondir].CompletedPoints)
	require.Equal(t, 9.0, res.ProjectProgress[project.MethodSondir].MaxDepth)
	require.Equal(t, int64(0), res.ProjectProgress[project.MethodBor].CompletedPoints)
	require.Equal(t, 0.0, res.ProjectProgress[project.MethodBor].MaxDepth)
	require.ElementsMatch(t, []project.Method{project.MethodSondir, project.MethodBor}, res.Recomputed)

	_, err = f.svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.ErrorIs(t, err, progress.ErrRecordNotFound)

	f.activities.AssertCalled(t, "Log", mock.Anything, mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == activity.TypeMaxDepthRecomputed
	}))
}

func TestDelete_ShallowRecordKeepsMaxDepth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 1, 2)))
	require.NoError(t, err)
	_, err = f.upsert(t, "user-2", "2024-03-01", items(item("sondir", 1, 9)))
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Equal(t, 9.0, res.ProjectProgress[project.MethodSondir].MaxDepth)
	require.Empty(t, res.Recomputed)
}

func TestDelete_TiedMaxDepthSurvivesUntilLastHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.upsert(t, "user-1", "2024-03-01", items(item("bor", 1, 5)))
	require.NoError(t, err)
	_, err = f.upsert(t, "user-2", "2024-03-01", items(item("bor", 1, 5)))
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: "user-1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Equal(t, 5.0, res.ProjectProgress[project.MethodBor].MaxDepth)
	require.Equal(t, int64(1), res.ProjectProgress[project.MethodBor].CompletedPoints)

	res, err = f.svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: "user-2", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Equal(t, 0.0, res.ProjectProgress[project.MethodBor].MaxDepth)
	require.Equal(t, int64(0), res.ProjectProgress[project.MethodBor].CompletedPoints)
}

func TestList_PagingAndCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		_, err := f.upsert(t, "user-1", fmt.Sprintf("2024-03-%02d", day), items(item("sondir", 1, 1)))
		require.NoError(t, err)
	}
	_, err := f.upsert(t, "user-2", "2024-03-03", items(item("bor", 1, 1)))
	require.NoError(t, err)

	page, err := f.svc.List(ctx, progress.ListRequest{ProjectID: "p1", Page: paging.Params{Limit: 4}})
	require.NoError(t, err)
	require.Equal(t, 6, page.TotalItems)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 4)
	require.Equal(t, "2024-03-05", page.Items[0].LocalDate)

	mine, err := f.svc.List(ctx, progress.ListRequest{ProjectID: "p1", ActorID: "user-2", Author: progress.AuthorMe})
	require.NoError(t, err)
	require.Equal(t, 1, mine.TotalItems)

	ranged, err := f.svc.List(ctx, progress.ListRequest{ProjectID: "p1", From: "2024-03-02", To: "2024-03-03", Author: "emp-1"})
	require.NoError(t, err)
	require.Equal(t, 2, ranged.TotalItems)

	var seen []string
	cursor := ""
	for {
		res, err := f.svc.List(ctx, progress.ListRequest{
			ProjectID: "p1",
			Page:      paging.Params{Mode: paging.ModeCursor, Limit: 4, Cursor: cursor},
		})
		require.NoError(t, err)
		for _, rec := range res.Items {
			seen = append(seen, rec.ID)
		}
		if !res.HasMore {
			break
		}
		cursor = res.NextCursor
	}
	require.Len(t, seen, 6)
}

func TestList_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, progress.ListRequest{ProjectID: "p1", Page: paging.Params{Mode: "scroll"}})
	require.ErrorIs(t, err, progress.ErrInvalidInput)

	_, err = f.svc.List(ctx, progress.ListRequest{ProjectID: "p1", From: "03/01/2024"})
	require.ErrorIs(t, err, progress.ErrInvalidInput)

	_, err = f.svc.List(ctx, progress.ListRequest{ProjectID: "p1", Page: paging.Params{Mode: paging.ModeCursor, Cursor: paging.EncodeCursor("x", "y")}})
	require.ErrorIs(t, err, progress.ErrInvalidInput)

	_, err = f.svc.List(ctx, progress.ListRequest{ProjectID: "nope"})
	require.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Search(ctx, progress.SearchRequest{ProjectID: "p1", Query: "  "})
	require.ErrorIs(t, err, progress.ErrInvalidInput)

	_, err = f.upsert(t, "user-1", "2024-03-01", items(item("sondir", 1, 1)))
	require.NoError(t, err)

	results, err := f.svc.Search(ctx, progress.SearchRequest{ProjectID: "p1", Query: "catatan"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestNormalize(t *testing.T) {
	var in []progress.ItemInput
	raw := `[
		{"method":"sondir","points_done":"3.9","depth_reached":"12.5"},
		{"method":"bor","points_done":-4,"depth_reached":null},
		{"method":"laser","points_done":1},
		{"method":"cptu","points_done":"abc","depth_reached":true},
		null,
		7
	]`
	in = progress.DecodeItems(json.RawMessage(raw))
	require.Len(t, in, 4)

	got := progress.Normalize(in)
	require.Equal(t, []progress.Item{
		{Method: project.MethodSondir, PointsDone: 3, DepthReached: 12.5},
		{Method: project.MethodBor, PointsDone: 0, DepthReached: 0},
		{Method: project.MethodCPTU, PointsDone: 0, DepthReached: 0},
	}, got)

	require.Nil(t, progress.DecodeItems(nil))
	require.NotNil(t, progress.DecodeItems(json.RawMessage(`"oops"`)))
	require.Empty(t, progress.DecodeItems(json.RawMessage(`null`)))
}

// TestLedger_RandomSequencesKeepAggregateConsistent replays random upserts and deletes
// and checks the aggregate against the surviving records after every step.
func TestLedger_RandomSequencesKeepAggregateConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	actors := []string{"user-1", "user-2"}
	methods := []string{"sondir", "bor", "cptu", "laser"}

	for step := 0; step < 400; step++ {
		actor := actors[rng.Intn(len(actors))]
		date := fmt.Sprintf("2024-04-%02d", 1+rng.Intn(6))

		var err error
		if rng.Intn(4) == 0 {
			_, err = f.svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: actor, LocalDate: date})
		} else {
			var in []progress.ItemInput
			for i := rng.Intn(4); i > 0; i-- {
				in = append(in, item(methods[rng.Intn(len(methods))], float64(rng.Intn(4)), float64(rng.Intn(30))/2))
			}
			_, err = f.svc.Upsert(ctx, progress.UpsertRequest{
				ProjectID:    "p1",
				ActorID:      actor,
				LocalDate:    date,
				Items:        items(in...),
				ConfirmClear: rng.Intn(2) == 0,
			})
		}
		if err != nil {
			require.True(t,
				errors.Is(err, progress.ErrBoundsViolation) ||
					errors.Is(err, progress.ErrRecordNotFound) ||
					errors.Is(err, progress.ErrConfirmationRequired),
				"step %d: unexpected error %v", step, err)
		}

		proj := f.store.project("p1")
		points := map[project.Method]int64{}
		depths := map[project.Method]float64{}
		for _, rec := range f.store.records {
			for _, it := range rec.Items {
				points[it.Method] += it.PointsDone
				if it.DepthReached > depths[it.Method] {
					depths[it.Method] = it.DepthReached
				}
			}
		}
		for _, m := range project.Methods {
			mp := proj.Progress[m]
			require.Equal(t, points[m], mp.CompletedPoints, "step %d method %s points", step, m)
			require.Equal(t, depths[m], mp.MaxDepth, "step %d method %s depth", step, m)
			require.GreaterOrEqual(t, mp.CompletedPoints, int64(0))
			require.LessOrEqual(t, mp.CompletedPoints, mp.TotalPoints)
		}
	}
}

func TestSearch_ClampsLimit(t *testing.T) {
	store := newMemStore(&project.Project{ID: "p1", StartDate: "2024-01-01"})
	search := &mocks.SearchRepository{}
	search.On("Search", mock.Anything, progress.SearchOptions{ProjectID: "p1", Query: "hujan", Limit: 100}).
		Return([]progress.SearchResult(nil), nil)

	svc := progress.NewService(store, memRecords{store}, search, store, &mocks.EmployeeResolver{}, nil, nil)
	results, err := svc.Search(context.Background(), progress.SearchRequest{ProjectID: "p1", Query: " hujan ", Limit: 500})
	require.NoError(t, err)
	require.NotNil(t, results)
	require.Empty(t, results)
	search.AssertExpectations(t)
}
