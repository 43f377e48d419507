package repository

import (
	"context"
	"errors"
	"testing"

	"specstore/internal/evaluate"
	"specstore/internal/infra/persistence/memory"
	"specstore/pkg/specification"
)

type Author struct {
	ID    string
	Name  string
	Age   int
	Books []Book
}

type Book struct {
	Title    string
	Chapters []string
}

func (a Author) Key() string          { return a.ID }
func (a *Author) AssignKey(id string) { a.ID = id }

var (
	_ Repository[Author, string]     = (*EntityRepository[Author, string])(nil)
	_ ReadRepository[Author, string] = (*EntityRepository[Author, string])(nil)
)

func newTestContext(t *testing.T, opts ...Option) (*Context, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	uow := NewContext(store.OpenSession(), opts...)
	t.Cleanup(func() { _ = uow.Close() })
	return uow, store
}

func seedAuthors(t *testing.T, store *memory.Store, authors ...Author) {
	t.Helper()
	uow := NewContext(store.OpenSession())
	defer uow.Close()
	repo := Repo[Author, string](uow)
	for i := range authors {
		if _, err := repo.Add(context.Background(), &authors[i]); err != nil {
			t.Fatalf("seed add: %v", err)
		}
	}
	if _, err := uow.SaveChanges(context.Background()); err != nil {
		t.Fatalf("seed save: %v", err)
	}
}

func byAge() specification.Selector {
	return specification.Field("Age", func(a Author) int { return a.Age })
}

func byName() specification.Selector {
	return specification.Field("Name", func(a Author) string { return a.Name })
}

func TestAddAssignsGeneratedKey(t *testing.T) {
	uow, _ := newTestContext(t)
	repo := Repo[Author, string](uow)

	added, err := repo.Add(context.Background(), &Author{Name: "Ada"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID == "" {
		t.Fatal("zero key should be replaced by a generated identifier")
	}

	if _, err := uow.SaveChanges(context.Background()); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}
	got, err := repo.GetByID(context.Background(), added.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Name != "Ada" {
		t.Fatalf("round trip failed: %+v", got)
	}
}

func TestAddKeepsExplicitKey(t *testing.T) {
	uow, _ := newTestContext(t)
	repo := Repo[Author, string](uow)
	added, err := repo.Add(context.Background(), &Author{ID: "fixed", Name: "Ada"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID != "fixed" {
		t.Fatalf("explicit key overwritten: %q", added.ID)
	}
}

func TestNilEntityRejected(t *testing.T) {
	uow, _ := newTestContext(t)
	repo := Repo[Author, string](uow)
	ctx := context.Background()
	if _, err := repo.Add(ctx, nil); !errors.Is(err, ErrNilEntity) {
		t.Fatalf("Add nil: %v", err)
	}
	if err := repo.Update(ctx, nil); !errors.Is(err, ErrNilEntity) {
		t.Fatalf("Update nil: %v", err)
	}
	if err := repo.Remove(ctx, nil); !errors.Is(err, ErrNilEntity) {
		t.Fatalf("Remove nil: %v", err)
	}
}

func TestCancelledContextRejected(t *testing.T) {
	uow, _ := newTestContext(t)
	repo := Repo[Author, string](uow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.Add(ctx, &Author{ID: "a"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Add: %v", err)
	}
	if _, err := repo.ListAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ListAll: %v", err)
	}
}

func TestGetByIDAbsentIsNil(t *testing.T) {
	uow, _ := newTestContext(t)
	got, err := ReadRepo[Author, string](uow).GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("absence must be nil, got %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Name: "Ada", Age: 36},
		Author{ID: "2", Name: "Alan", Age: 41},
		Author{ID: "3", Name: "Grace", Age: 85},
	)

	spec := specification.New[Author]().
		Where(func(a Author) bool { return a.Age > 38 }).
		Where(func(a Author) bool { return a.Name != "" })
	got, err := ReadRepo[Author, string](uow).List(context.Background(), spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	for _, a := range got {
		if a.Age <= 38 {
			t.Fatalf("predicate violated: %+v", a)
		}
	}
}

func TestListOrdersByPriority(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Name: "Zoe", Age: 30},
		Author{ID: "2", Name: "Ada", Age: 30},
		Author{ID: "3", Name: "Mel", Age: 25},
	)

	spec := specification.New[Author]().
		OrderBy(byAge()).
		OrderByDescending(byName())
	got, err := ReadRepo[Author, string](uow).List(context.Background(), spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"Mel", "Zoe", "Ada"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestListPaging(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Name: "a", Age: 1},
		Author{ID: "2", Name: "b", Age: 2},
		Author{ID: "3", Name: "c", Age: 3},
		Author{ID: "4", Name: "d", Age: 4},
	)

	spec := specification.New[Author]().OrderBy(byAge())
	if err := spec.ApplyPaging(1, 2); err != nil {
		t.Fatalf("ApplyPaging: %v", err)
	}
	got, err := ReadRepo[Author, string](uow).List(context.Background(), spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "c" {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestCountIgnoresPaging(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Age: 1},
		Author{ID: "2", Age: 2},
		Author{ID: "3", Age: 3},
		Author{ID: "4", Age: 4},
		Author{ID: "5", Age: 5},
	)

	spec := specification.New[Author]().OrderBy(byAge())
	if err := spec.ApplyPaging(0, 2); err != nil {
		t.Fatalf("ApplyPaging: %v", err)
	}
	repo := ReadRepo[Author, string](uow)
	n, err := repo.Count(context.Background(), spec)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Fatalf("Count = %d, want 5", n)
	}
	ok, err := repo.Any(context.Background(), spec)
	if err != nil || !ok {
		t.Fatalf("Any = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestFirstOrDefault(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Name: "Ada", Age: 36},
		Author{ID: "2", Name: "Alan", Age: 41},
	)

	repo := ReadRepo[Author, string](uow)
	spec := specification.New[Author]().OrderByDescending(byAge())
	got, err := repo.FirstOrDefault(context.Background(), spec)
	if err != nil {
		t.Fatalf("FirstOrDefault: %v", err)
	}
	if got == nil || got.Name != "Alan" {
		t.Fatalf("expected Alan first, got %+v", got)
	}

	none := specification.New[Author]().Where(func(a Author) bool { return false })
	got, err = repo.FirstOrDefault(context.Background(), none)
	if err != nil {
		t.Fatalf("FirstOrDefault empty: %v", err)
	}
	if got != nil {
		t.Fatalf("empty match must be nil, got %+v", got)
	}
}

func TestIncludeChainPopulatesGraph(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store, Author{
		ID:   "1",
		Name: "Ada",
		Books: []Book{
			{Title: "Notes", Chapters: []string{"I", "II"}},
		},
	})

	spec := specification.New[Author]()
	spec.Include(specification.Field("Books", func(a Author) []Book { return a.Books })).
		ThenInclude(specification.Field("Chapters", func(b Book) []string { return b.Chapters }))
	got, err := ReadRepo[Author, string](uow).List(context.Background(), spec)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || len(got[0].Books) != 1 || len(got[0].Books[0].Chapters) != 2 {
		t.Fatalf("graph not populated: %+v", got)
	}
}

func TestProjectedList(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Name: "Ada", Age: 36},
		Author{ID: "2", Name: "Alan", Age: 41},
		Author{ID: "3", Name: "Mel", Age: 25},
	)

	p := specification.NewProjection[Author, string]()
	p.Where(func(a Author) bool { return a.Age > 30 })
	p.OrderBy(byName())
	p.Select(func(a Author) string { return a.Name })

	names, err := ListProjected(context.Background(), EntityRepo[Author, string](uow), p)
	if err != nil {
		t.Fatalf("ListProjected: %v", err)
	}
	if len(names) != 2 || names[0] != "Ada" || names[1] != "Alan" {
		t.Fatalf("unexpected projection: %v", names)
	}
}

func TestProjectedListMissingSelector(t *testing.T) {
	uow, _ := newTestContext(t)
	p := specification.NewProjection[Author, string]()
	_, err := ListProjected(context.Background(), EntityRepo[Author, string](uow), p)
	if !errors.Is(err, evaluate.ErrMissingSelector) {
		t.Fatalf("expected ErrMissingSelector, got %v", err)
	}
}

func TestReadSurfaceIsDetached(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store, Author{ID: "1", Name: "Ada"})

	got, err := ReadRepo[Author, string](uow).GetByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Name = "mutated"
	n, err := uow.SaveChanges(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("detached mutation must not persist, got (%d, %v)", n, err)
	}
}

func TestWriteSurfaceTracksMutations(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store, Author{ID: "1", Name: "Ada"})

	got, err := Repo[Author, string](uow).GetByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Name = "renamed"
	n, err := uow.SaveChanges(context.Background())
	if err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 implicit update, got %d", n)
	}

	check := NewContext(store.OpenSession())
	defer check.Close()
	after, err := ReadRepo[Author, string](check).GetByID(context.Background(), "1")
	if err != nil || after == nil {
		t.Fatalf("reload: %+v %v", after, err)
	}
	if after.Name != "renamed" {
		t.Fatalf("mutation lost: %+v", after)
	}
}

func TestExplicitReattachViaUpdate(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store, Author{ID: "1", Name: "Ada"})

	detached, err := ReadRepo[Author, string](uow).GetByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	detached.Name = "renamed"
	if err := Repo[Author, string](uow).Update(context.Background(), detached); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := uow.SaveChanges(context.Background()); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	check := NewContext(store.OpenSession())
	defer check.Close()
	after, _ := ReadRepo[Author, string](check).GetByID(context.Background(), "1")
	if after == nil || after.Name != "renamed" {
		t.Fatalf("re-attach not persisted: %+v", after)
	}
}

func TestRemoveAndRanges(t *testing.T) {
	uow, store := newTestContext(t)
	seedAuthors(t, store,
		Author{ID: "1", Name: "a"},
		Author{ID: "2", Name: "b"},
		Author{ID: "3", Name: "c"},
	)

	repo := Repo[Author, string](uow)
	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if err := repo.RemoveRange(context.Background(), all[:2]); err != nil {
		t.Fatalf("RemoveRange: %v", err)
	}
	if _, err := uow.SaveChanges(context.Background()); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	n, err := ReadRepo[Author, string](uow).Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining, got %d", n)
	}
}

func TestRepoMemoizedPerType(t *testing.T) {
	uow, _ := newTestContext(t)
	a := Repo[Author, string](uow)
	b := Repo[Author, string](uow)
	if a != b {
		t.Fatal("repositories must be memoized per entity type")
	}
	ra := ReadRepo[Author, string](uow)
	rb := ReadRepo[Author, string](uow)
	if ra != rb {
		t.Fatal("read repositories must be memoized per entity type")
	}
	if any(a) == any(ra) {
		t.Fatal("read and write surfaces must be distinct instances")
	}
}

func TestTransactionVisibility(t *testing.T) {
	uow, store := newTestContext(t)
	ctx := context.Background()

	tx, err := uow.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	repo := Repo[Author, string](uow)
	if _, err := repo.Add(ctx, &Author{ID: "1", Name: "Ada"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges in tx: %v", err)
	}

	// Saved-but-uncommitted work is visible inside the scope.
	inside, err := repo.GetByID(ctx, "1")
	if err != nil || inside == nil {
		t.Fatalf("inside visibility: %+v %v", inside, err)
	}
	// And invisible outside it.
	outside := NewContext(store.OpenSession())
	defer outside.Close()
	if got, _ := ReadRepo[Author, string](outside).GetByID(ctx, "1"); got != nil {
		t.Fatal("uncommitted work leaked outside the transaction")
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got, _ := ReadRepo[Author, string](outside).GetByID(ctx, "1"); got == nil {
		t.Fatal("committed work should be visible outside")
	}
}

func TestTransactionImplicitRollbackOnClose(t *testing.T) {
	uow, store := newTestContext(t)
	ctx := context.Background()

	tx, err := uow.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if _, err := Repo[Author, string](uow).Add(ctx, &Author{ID: "1"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := uow.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("repeated Close: %v", err)
	}

	check := NewContext(store.OpenSession())
	defer check.Close()
	if got, _ := ReadRepo[Author, string](check).GetByID(ctx, "1"); got != nil {
		t.Fatal("undecided disposal must roll back")
	}
}

func TestTransactionDoubleDecision(t *testing.T) {
	uow, _ := newTestContext(t)
	ctx := context.Background()
	tx, err := uow.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, ErrTransactionDone) {
		t.Fatalf("second Commit: %v", err)
	}
	if err := tx.Rollback(ctx); !errors.Is(err, ErrTransactionDone) {
		t.Fatalf("Rollback after Commit: %v", err)
	}
	if err := tx.Close(); err != nil {
		t.Fatalf("Close after decision should be a no-op, got %v", err)
	}
}
