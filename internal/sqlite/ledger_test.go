package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/rpggio/fieldlog/internal/domain/employee"
	"github.com/rpggio/fieldlog/internal/domain/progress"
	"github.com/rpggio/fieldlog/internal/domain/project"
	"github.com/rpggio/fieldlog/internal/domain/reconcile"
	"github.com/rpggio/fieldlog/internal/repository"
	"github.com/stretchr/testify/require"
)

func newRecord(id, projectID, authorID, date string, items ...progress.Item) *progress.Record {
	now := time.Now().UTC()
	return &progress.Record{
		ID:        id,
		ProjectID: projectID,
		AuthorID:  authorID,
		LocalDate: date,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestLedger_RecordLifecycle(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertEmployee(t, db, "e1")
	ledger := NewLedger(db)
	records := NewRecordRepository(db)

	rec := newRecord("r1", "p1", "e1", "2024-03-01",
		progress.Item{Method: project.MethodBor, PointsDone: 2, DepthReached: 12.5},
		progress.Item{Method: project.MethodSondir, PointsDone: 1, DepthReached: 3},
	)
	rec.Notes = "first day"
	err := ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.InsertRecord(ctx, rec)
	})
	require.NoError(t, err)

	got, err := records.Get(ctx, rec.Key())
	require.NoError(t, err)
	require.Equal(t, "Employee e1", got.AuthorName)
	require.Equal(t, "first day", got.Notes)
	require.Equal(t, rec.Items, got.Items, "items keep their order")

	dup := newRecord("r2", "p1", "e1", "2024-03-01")
	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.InsertRecord(ctx, dup)
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		replaced := *got
		replaced.Notes = "revised"
		replaced.Items = []progress.Item{{Method: project.MethodCPTU, PointsDone: 3, DepthReached: 1}}
		return tx.ReplaceRecord(ctx, &replaced)
	})
	require.NoError(t, err)

	got, err = records.Get(ctx, rec.Key())
	require.NoError(t, err)
	require.Equal(t, "revised", got.Notes)
	require.Len(t, got.Items, 1)
	require.Equal(t, project.MethodCPTU, got.Items[0].Method)

	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.DeleteRecord(ctx, "r1")
	})
	require.NoError(t, err)
	_, err = records.Get(ctx, rec.Key())
	require.ErrorIs(t, err, repository.ErrNotFound)

	var items int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_progress_items`).Scan(&items))
	require.Zero(t, items, "items cascade with their record")

	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.DeleteRecord(ctx, "r1")
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLedger_RollbackOnError(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertEmployee(t, db, "e1")
	ledger := NewLedger(db)

	boom := errors.New("boom")
	err := ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		if err := tx.InsertRecord(ctx, newRecord("r1", "p1", "e1", "2024-03-01")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = NewRecordRepository(db).Get(ctx, progress.Key{ProjectID: "p1", AuthorID: "e1", LocalDate: "2024-03-01"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLedger_ApplyIncrementGuard(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 5, 5, 5)
	ledger := NewLedger(db)
	projects := NewProjectRepository(db)

	err := ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.ApplyIncrement(ctx, "p1",
			map[project.Method]int64{project.MethodBor: 3},
			map[project.Method]float64{project.MethodBor: 7.5})
	})
	require.NoError(t, err)

	proj, err := projects.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(3), proj.Progress[project.MethodBor].CompletedPoints)
	require.Equal(t, 7.5, proj.Progress[project.MethodBor].MaxDepth)

	// Raising stays monotonic
	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.ApplyIncrement(ctx, "p1",
			map[project.Method]int64{project.MethodSondir: 1},
			map[project.Method]float64{project.MethodBor: 2})
	})
	require.NoError(t, err)
	proj, err = projects.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 7.5, proj.Progress[project.MethodBor].MaxDepth)

	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.ApplyIncrement(ctx, "p1",
			map[project.Method]int64{project.MethodSondir: 1, project.MethodBor: 3}, nil)
	})
	require.ErrorIs(t, err, repository.ErrGuardRejected)

	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.ApplyIncrement(ctx, "p1", map[project.Method]int64{project.MethodCPTU: -1}, nil)
	})
	require.ErrorIs(t, err, repository.ErrGuardRejected)

	proj, err = projects.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(1), proj.Progress[project.MethodSondir].CompletedPoints, "rejected increment rolls back")
	require.Equal(t, int64(3), proj.Progress[project.MethodBor].CompletedPoints)
}

func TestLedger_MaxDepth(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertProject(t, db, "p2", 10, 10, 10)
	insertEmployee(t, db, "e1")
	ledger := NewLedger(db)

	err := ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		for _, rec := range []*progress.Record{
			newRecord("r1", "p1", "e1", "2024-03-01", progress.Item{Method: project.MethodBor, PointsDone: 1, DepthReached: 4}),
			newRecord("r2", "p1", "e1", "2024-03-02", progress.Item{Method: project.MethodBor, PointsDone: 1, DepthReached: 9}),
			newRecord("r3", "p2", "e1", "2024-03-02", progress.Item{Method: project.MethodBor, PointsDone: 1, DepthReached: 30}),
		} {
			if err := tx.InsertRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = ledger.WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		depths, err := tx.MaxDepth(ctx, "p1", []project.Method{project.MethodBor, project.MethodCPTU})
		require.NoError(t, err)
		require.Equal(t, map[project.Method]float64{project.MethodBor: 9, project.MethodCPTU: 0}, depths)

		if err := tx.SetMaxDepth(ctx, "p1", depths); err != nil {
			return err
		}
		proj, err := tx.GetProject(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, 9.0, proj.Progress[project.MethodBor].MaxDepth)
		return nil
	})
	require.NoError(t, err)
}

func TestReconcileStore_ActualsAndRepair(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertEmployee(t, db, "e1")

	err := NewLedger(db).WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		return tx.InsertRecord(ctx, newRecord("r1", "p1", "e1", "2024-03-01",
			progress.Item{Method: project.MethodCPTU, PointsDone: 2, DepthReached: 6},
			progress.Item{Method: project.MethodCPTU, PointsDone: 1, DepthReached: 8},
		))
	})
	require.NoError(t, err)

	store := NewReconcileStore(db)
	svc := reconcile.NewService(store, NewActivityRepository(db), nil)

	report, err := svc.Check(ctx, "p1")
	require.NoError(t, err)
	require.False(t, report.Consistent)

	report, err = svc.Repair(ctx, "p1", "admin")
	require.NoError(t, err)
	require.True(t, report.Repaired)

	proj, err := NewProjectRepository(db).Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(3), proj.Progress[project.MethodCPTU].CompletedPoints)
	require.Equal(t, 8.0, proj.Progress[project.MethodCPTU].MaxDepth)

	report, err = svc.Check(ctx, "p1")
	require.NoError(t, err)
	require.True(t, report.Consistent)

	ids, err := store.ListProjectIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, ids)
}

func newProgressService(db *DB) *progress.Service {
	projects := NewProjectRepository(db)
	return progress.NewService(
		NewLedger(db),
		NewRecordRepository(db),
		NewSearchRepository(db),
		projects,
		employee.NewService(NewEmployeeRepository(db)),
		NewActivityRepository(db),
		nil,
	)
}

func TestProgressService_SQLite(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertEmployee(t, db, "e1")
	svc := newProgressService(db)

	res, err := svc.Upsert(ctx, progress.UpsertRequest{
		ProjectID: "p1",
		ActorID:   "user-e1",
		LocalDate: "2024-03-01",
		Notes:     "soft clay",
		Items: []progress.ItemInput{
			{Method: "bor", PointsDone: 3, DepthReached: 20},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), res.ProjectProgress[project.MethodBor].CompletedPoints)
	require.Equal(t, 20.0, res.ProjectProgress[project.MethodBor].MaxDepth)

	res, err = svc.Upsert(ctx, progress.UpsertRequest{
		ProjectID: "p1",
		ActorID:   "user-e1",
		LocalDate: "2024-03-01",
		Items: []progress.ItemInput{
			{Method: "bor", PointsDone: 1, DepthReached: 5},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.ProjectProgress[project.MethodBor].CompletedPoints)
	require.Equal(t, 5.0, res.ProjectProgress[project.MethodBor].MaxDepth)
	require.Equal(t, []project.Method{project.MethodBor}, res.Recomputed)

	_, err = svc.Upsert(ctx, progress.UpsertRequest{
		ProjectID: "p1",
		ActorID:   "user-e1",
		LocalDate: "2024-03-02",
		Items:     []progress.ItemInput{{Method: "bor", PointsDone: 10}},
	})
	var bounds *progress.BoundsError
	require.ErrorAs(t, err, &bounds)
	require.Equal(t, []project.Method{project.MethodBor}, bounds.Methods)

	res, err = svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: "user-e1", LocalDate: "2024-03-01"})
	require.NoError(t, err)
	require.Equal(t, int64(0), res.ProjectProgress[project.MethodBor].CompletedPoints)
	require.Equal(t, 0.0, res.ProjectProgress[project.MethodBor].MaxDepth)

	entries, err := NewActivityRepository(db).List(ctx, activityOptions("p1"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestProgressService_WrappingPointSumRejected(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertEmployee(t, db, "e1")
	svc := newProgressService(db)

	items := make([]progress.ItemInput, 0, 2049)
	for i := 0; i < 2048; i++ {
		items = append(items, progress.ItemInput{Method: "sondir", PointsDone: 1 << 53})
	}
	items = append(items, progress.ItemInput{Method: "sondir", PointsDone: 3})

	_, err := svc.Upsert(ctx, progress.UpsertRequest{
		ProjectID: "p1",
		ActorID:   "user-e1",
		LocalDate: "2024-03-01",
		Items:     items,
	})
	require.ErrorIs(t, err, progress.ErrBoundsViolation)

	report, err := reconcile.NewService(NewReconcileStore(db), nil, nil).Check(ctx, "p1")
	require.NoError(t, err)
	require.True(t, report.Consistent)
}

// TestProgressService_AggregateInvariant drives random upserts and deletes through
// the real store and checks the aggregate against the surviving records.
func TestProgressService_AggregateInvariant(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 40, 40, 40)
	insertEmployee(t, db, "e1")
	insertEmployee(t, db, "e2")
	svc := newProgressService(db)
	checker := reconcile.NewService(NewReconcileStore(db), nil, nil)

	rng := rand.New(rand.NewSource(7))
	methods := []string{"sondir", "bor", "cptu", "auger"}
	for step := 0; step < 150; step++ {
		actor := fmt.Sprintf("user-e%d", rng.Intn(2)+1)
		date := fmt.Sprintf("2024-03-%02d", rng.Intn(5)+1)
		if rng.Intn(4) == 0 {
			_, err := svc.Delete(ctx, progress.DeleteRequest{ProjectID: "p1", ActorID: actor, LocalDate: date})
			if err != nil {
				require.ErrorIs(t, err, progress.ErrRecordNotFound)
			}
		} else {
			var items []progress.ItemInput
			for n := rng.Intn(3); n > 0; n-- {
				items = append(items, progress.ItemInput{
					Method:       methods[rng.Intn(len(methods))],
					PointsDone:   progress.Quantity(rng.Intn(6)),
					DepthReached: progress.Quantity(rng.Float64() * 30),
				})
			}
			if items == nil {
				items = []progress.ItemInput{}
			}
			_, err := svc.Upsert(ctx, progress.UpsertRequest{
				ProjectID:    "p1",
				ActorID:      actor,
				LocalDate:    date,
				Items:        items,
				ConfirmClear: true,
			})
			if err != nil {
				require.ErrorIs(t, err, progress.ErrBoundsViolation)
			}
		}

		report, err := checker.Check(ctx, "p1")
		require.NoError(t, err)
		require.True(t, report.Consistent, "step %d: %+v", step, report.Methods)
	}
}

func TestRecordRepository_List(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertProject(t, db, "p1", 10, 10, 10)
	insertEmployee(t, db, "e1")
	insertEmployee(t, db, "e2")

	err := NewLedger(db).WithinTx(ctx, func(ctx context.Context, tx progress.LedgerTx) error {
		for _, rec := range []*progress.Record{
			newRecord("a", "p1", "e1", "2024-03-01"),
			newRecord("b", "p1", "e2", "2024-03-01"),
			newRecord("c", "p1", "e1", "2024-03-02", progress.Item{Method: project.MethodBor, PointsDone: 1}),
			newRecord("d", "p1", "e1", "2024-03-03"),
		} {
			if err := tx.InsertRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	repo := NewRecordRepository(db)
	ids := func(recs []progress.Record) []string {
		out := make([]string, len(recs))
		for i := range recs {
			out[i] = recs[i].ID
		}
		return out
	}

	all, err := repo.List(ctx, progress.ListOptions{ProjectID: "p1"})
	require.NoError(t, err)
	require.Equal(t, []string{"d", "c", "b", "a"}, ids(all))
	require.Len(t, all[1].Items, 1)
	require.NotNil(t, all[0].Items)

	mine, err := repo.List(ctx, progress.ListOptions{ProjectID: "p1", AuthorID: "e1", From: "2024-03-02"})
	require.NoError(t, err)
	require.Equal(t, []string{"d", "c"}, ids(mine))

	window, err := repo.List(ctx, progress.ListOptions{ProjectID: "p1", From: "2024-03-01", To: "2024-03-01"})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, ids(window))

	page, err := repo.List(ctx, progress.ListOptions{ProjectID: "p1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b"}, ids(page))

	after, err := repo.List(ctx, progress.ListOptions{
		ProjectID: "p1",
		After:     &progress.Cursor{LocalDate: "2024-03-01", ID: "b"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids(after))

	count, err := repo.Count(ctx, progress.ListOptions{ProjectID: "p1", AuthorID: "e1"})
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
