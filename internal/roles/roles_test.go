package roles

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doj-records/records/internal/shared"
	"github.com/doj-records/records/internal/storage"
	"github.com/doj-records/records/internal/storage/filestore"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	files, err := filestore.New(t.TempDir(), nil, nil)
	require.NoError(t, err)
	return storage.New(files, nil, nil, nil, nil)
}

func newService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store := newStore(t)
	return NewService(NewRepository(store, nil), nil), store
}

func TestGrantsFoldSynonymsAndDropUnknownModules(t *testing.T) {
	role := Role{ID: "clerk", Permissions: map[string][]string{
		"cases":   {"read", "list", "destroy", "remove", "edit"},
		"files":   {"0"},
		"payroll": {"view"},
	}}
	grants := role.Grants()
	require.Equal(t, shared.AllActions, grants["cases"])
	require.Equal(t, shared.NewActionSet("edit"), grants["files"], "numeric codes fold to edit")
	require.NotContains(t, grants, "payroll")
}

func TestCanonicalPermissions(t *testing.T) {
	got := CanonicalPermissions(map[string][]string{
		"cases":    {"2", "show", "show"},
		"warrants": {},
		"nonsense": {"view"},
		"evidence": {"update"},
	})
	require.Equal(t, map[string][]string{
		"cases":    {"view", "edit"},
		"evidence": {"edit"},
	}, got)
}

func TestRepositoryDecodesLegacyShapes(t *testing.T) {
	store := newStore(t)
	legacy := `[
		{"id": "clerk", "name": "Clerk", "permissions": {"cases": ["0", 1], "files": "view", "payroll": ["view"]}},
		{"id": "judge", "name": "Judge", "permissions": []},
		{"name": "orphan without id"}
	]`
	require.NoError(t, os.WriteFile(store.Files().Path(shared.CollectionRoles), []byte(legacy), 0o644))

	list, err := NewRepository(store, nil).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]Role{}
	for _, r := range list {
		byID[r.ID] = r
	}
	require.Equal(t, []string{"0", "1"}, byID["clerk"].Permissions["cases"])
	require.Equal(t, []string{"view"}, byID["clerk"].Permissions["files"])
	require.Empty(t, byID["judge"].Permissions)
	require.NotNil(t, byID["judge"].Permissions)
}

func TestSaveStoresCanonicalPermissions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	saved, created, err := svc.Save(ctx, Role{
		ID:          "clerk",
		Name:        " Clerk ",
		Permissions: map[string][]string{"cases": {"list", "update"}},
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Clerk", saved.Name)

	got, err := svc.Get(ctx, "clerk")
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"cases": {"view", "edit"}}, got.Permissions)

	_, created, err = svc.Save(ctx, Role{ID: "clerk", Name: "Clerk", Permissions: map[string][]string{"cases": {"view"}}})
	require.NoError(t, err)
	require.False(t, created)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []string{"view"}, list[0].Permissions["cases"])
}

func TestSaveRejectsInvalidRoles(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[string]Role{
		"missing name":    {ID: "clerk"},
		"bad id":          {ID: "Chief Justice", Name: "Chief Justice"},
		"unknown module":  {ID: "clerk", Name: "Clerk", Permissions: map[string][]string{"payroll": {"view"}}},
		"narrowing admin": {ID: shared.RoleAdmin, Name: "Administrator", Permissions: map[string][]string{"cases": {"view"}}},
	}
	for name, role := range cases {
		_, _, err := svc.Save(ctx, role)
		require.ErrorIs(t, err, ErrInvalidRole, name)
		require.ErrorIs(t, err, shared.ErrValidation, name)
	}

	_, _, err := svc.Save(ctx, Role{ID: shared.RoleAdmin, Name: "Administrator"})
	require.NoError(t, err)
}

func TestWritesNotifyListeners(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	var notified int
	svc.OnChange(func() { notified++ })

	_, _, err := svc.Save(ctx, Role{ID: "clerk"})
	require.Error(t, err)
	require.Zero(t, notified, "rejected writes do not notify")

	_, _, err = svc.Save(ctx, Role{ID: "clerk", Name: "Clerk"})
	require.NoError(t, err)
	require.Equal(t, 1, notified)

	require.NoError(t, svc.Delete(ctx, "clerk"))
	require.Equal(t, 2, notified)
}

func TestDeleteMissingRole(t *testing.T) {
	svc, _ := newService(t)
	require.ErrorIs(t, svc.Delete(context.Background(), "ghost"), ErrNotFound)
}

func TestNormalizeStoredIsIdempotent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	legacy := `[
		{"id": "clerk", "name": "Clerk", "permissions": {"cases": ["read", "update"], "payroll": ["view"]}},
		{"id": "judge", "name": "Judge", "permissions": {"hearings": ["view"]}}
	]`
	require.NoError(t, os.WriteFile(store.Files().Path(shared.CollectionRoles), []byte(legacy), 0o644))

	report, err := svc.NormalizeStored(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"clerk"}, report.Rewritten)
	require.Equal(t, 1, report.Unchanged)

	clerk, err := svc.Get(ctx, "clerk")
	require.NoError(t, err)
	require.Equal(t, map[string][]string{
		"cases":       {"view", "edit"},
		"civil_cases": {"view", "edit"},
		"revisions":   {"view", "edit"},
	}, clerk.Permissions)

	again, err := svc.NormalizeStored(ctx)
	require.NoError(t, err)
	require.Empty(t, again.Rewritten)
	require.Equal(t, 2, again.Unchanged)
}

func TestDefaultsAreValid(t *testing.T) {
	svc, _ := newService(t)
	for _, role := range Defaults() {
		_, created, err := svc.Save(context.Background(), role)
		require.NoError(t, err, role.ID)
		require.True(t, created)
	}
}
