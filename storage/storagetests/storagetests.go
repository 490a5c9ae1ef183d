// Package storagetests provides common acceptance tests for storage.Store
// implementations. The memory, SQLite, and Postgres backends all run this
// suite so they agree on CRUD and filtering semantics.
package storagetests

import (
	"testing"

	"github.com/apporbit/apporbit/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Category int

const (
	CategoryAI     Category = 1
	CategoryWeb    Category = 2
	CategoryMobile Category = 3
	CategoryGame   Category = 4
	CategoryDesign Category = 5
	CategoryDev    Category = 6
)

type Tool struct {
	ID       string
	Name     string
	Category Category
	Votes    *int // Ptr fields allow filtering on zero values.
}

func (t Tool) PK() string {
	return t.ID
}

type Maker struct {
	ID   string
	Name string
}

func (m Maker) PK() string {
	return m.ID
}

type BadModel struct {
	ID    string
	Cycle *BadModel
}

func (b BadModel) PK() string {
	return b.ID
}

func pint(i int) *int {
	return &i
}

func Run(t *testing.T, newStore func() storage.Store) {

	t.Run("TestCreateReadRoundTrip", func(t *testing.T) {
		nimbus := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryWeb,
		}
		quill := Tool{
			ID:       "2",
			Name:     "Quill",
			Category: CategoryAI,
		}

		nimbus2 := Tool{}
		quill2 := Tool{}

		store := newStore()
		err := store.Create(nimbus, quill)
		require.Nil(t, err, "unexpected error putting records")

		err = store.Read("1", &nimbus2)
		require.Nil(t, err, "unexpected error getting nimbus")
		assert.Equal(t, nimbus, nimbus2)

		err = store.Read("2", &quill2)
		require.Nil(t, err, "unexpected error getting quill")
		assert.Equal(t, quill, quill2)
	})

	t.Run("TestCreateConflict", func(t *testing.T) {
		nimbus := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryWeb,
		}
		nimbus2 := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryDev,
		}

		store := newStore()
		err := store.Create(nimbus)
		require.Nil(t, err, "unexpected error putting records")

		err = store.Create(nimbus2)
		assert.ErrorIs(t, err, storage.ErrAlreadyExists, "expected conflict error")
	})

	t.Run("TestCreateBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Create(bm)
		assert.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestReadNotFound", func(t *testing.T) {
		store := newStore()
		err := store.Read("1", &Tool{})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = store.Create(&Tool{ID: "1", Name: "Nimbus"})
		require.Nil(t, err, "unexpected error creating records")

		err = store.Read("2", &Tool{})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TestReadWithNilPointer", func(t *testing.T) {
		nimbus := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryWeb,
		}

		var nimbus2 *Tool

		store := newStore()
		err := store.Create(nimbus)
		require.Nil(t, err, "unexpected error putting records")

		err = store.Read("1", nimbus2)
		assert.ErrorIs(t, err, storage.ErrNilModel, "expected nil model error")
	})

	t.Run("TestUpdate", func(t *testing.T) {
		nimbus := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryWeb,
		}

		nimbus2 := Tool{}

		store := newStore()
		err := store.Create(nimbus)
		require.Nil(t, err, "unexpected error putting records")

		err = store.Read("1", &nimbus2)
		require.Nil(t, err, "unexpected error getting nimbus")
		assert.Equal(t, nimbus, nimbus2)

		nimbus.Category = CategoryDev
		err = store.Update(nimbus)
		require.Nil(t, err, "unexpected error updating nimbus")

		err = store.Read("1", &nimbus2)
		require.Nil(t, err, "unexpected error getting nimbus")
		assert.Equal(t, nimbus, nimbus2)
	})

	t.Run("TestUpdateNotExists", func(t *testing.T) {
		nimbus := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryWeb,
		}

		store := newStore()
		err := store.Update(nimbus)
		assert.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestUpdateBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Update(bm)
		assert.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestUpsert", func(t *testing.T) {
		nimbus := Tool{
			ID:       "1",
			Name:     "Nimbus",
			Category: CategoryWeb,
		}

		nimbus2 := Tool{}
		quill2 := Tool{}

		store := newStore()
		err := store.Create(nimbus)
		require.Nil(t, err, "unexpected error putting records")

		nimbus.Category = CategoryDev
		quill := Tool{ID: "2", Name: "Quill", Category: CategoryAI}
		err = store.Upsert(nimbus, quill)
		require.Nil(t, err, "unexpected error updating nimbus")

		err = store.Read("1", &nimbus2)
		require.Nil(t, err, "unexpected error getting nimbus")
		assert.Equal(t, nimbus, nimbus2)

		err = store.Read("2", &quill2)
		require.Nil(t, err, "unexpected error getting quill")
		assert.Equal(t, quill, quill2)
	})

	t.Run("TestUpsertBadModel", func(t *testing.T) {
		bm := BadModel{ID: "XXX"}
		bm.Cycle = &bm

		store := newStore()
		err := store.Upsert(bm)
		assert.ErrorIs(t, err, storage.ErrInvalidModel, "expected invalid model error")
	})

	t.Run("TestDelete", func(t *testing.T) {
		store := newStore()
		err := store.Create(&Tool{ID: "4", Name: "Forge"})
		assert.Nil(t, err)

		exists, err := store.Exists("4", &Tool{})
		assert.True(t, exists)
		assert.Nil(t, err)

		err = store.Delete(&Tool{ID: "4"})
		assert.Nil(t, err)

		exists, err = store.Exists("4", &Tool{})
		assert.False(t, exists)
		assert.Nil(t, err)

		err = store.Delete(&Tool{ID: "4"})
		assert.ErrorIs(t, err, storage.ErrNotFound, "expected not found error")
	})

	t.Run("TestListErrorCases", func(t *testing.T) {
		store := newStore()

		out := []Tool{}

		tests := []struct {
			name    string
			models  any
			filter  storage.Model
			wantErr error
		}{
			{"Ok", &out, Tool{}, nil},
			{"Not a slice", Tool{}, Tool{}, storage.ErrSliceRequired},
			{"Not a pointer", out, Tool{}, storage.ErrSliceRequired},
			{"Mismatched type", &out, Maker{}, storage.ErrTypeMismatch},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := store.List(tt.models, tt.filter); err != tt.wantErr {
					t.Errorf("store.List() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("TestList", func(t *testing.T) {

		store := newStore()
		err := store.Create(
			Tool{"1", "Nimbus", CategoryWeb, nil},
			Tool{"2", "Quill", CategoryAI, nil},
			Tool{"3", "Orbit", CategoryMobile, nil},
		)
		assert.Nil(t, err)

		actual := []Tool{}
		err = store.List(&actual, Tool{})
		assert.Nil(t, err)

		expected := []Tool{
			{"1", "Nimbus", CategoryWeb, nil},
			{"2", "Quill", CategoryAI, nil},
			{"3", "Orbit", CategoryMobile, nil},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestListFilter", func(t *testing.T) {

		store := newStore()
		err := store.Create(
			Tool{"1", "Nimbus", CategoryWeb, nil},
			Tool{"2", "Quill", CategoryAI, nil},
			Tool{"3", "Orbit", CategoryMobile, nil},
			Tool{"4", "Forge", CategoryDev, nil},
			Tool{"5", "Canvas", CategoryWeb, nil},
			Tool{"6", "Sprite", CategoryGame, nil},
			Tool{"7", "Vector", CategoryDesign, nil},
			Tool{"8", "Linter", CategoryDev, nil},
		)
		assert.Nil(t, err)

		actual := []Tool{}
		err = store.List(&actual, Tool{Category: CategoryWeb})
		assert.Nil(t, err)

		expected := []Tool{
			{"1", "Nimbus", CategoryWeb, nil},
			{"5", "Canvas", CategoryWeb, nil},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestListFilterZero", func(t *testing.T) {

		store := newStore()
		err := store.Create(
			Tool{"1", "Nimbus", CategoryWeb, pint(4)},
			Tool{"2", "Quill", CategoryAI, pint(3)},
			Tool{"3", "Orbit", CategoryMobile, pint(0)},
			Tool{"4", "Forge", CategoryDev, pint(0)},
			Tool{"5", "Canvas", CategoryWeb, nil},
		)
		assert.Nil(t, err)

		actual := []Tool{}
		err = store.List(&actual, Tool{Votes: pint(0)})
		assert.Nil(t, err)

		expected := []Tool{
			{"3", "Orbit", CategoryMobile, pint(0)},
			{"4", "Forge", CategoryDev, pint(0)},
		}

		assert.Equal(t, expected, actual)
	})

	t.Run("TestExists", func(t *testing.T) {
		store := newStore()
		exists, err := store.Exists("3", &Tool{})
		assert.False(t, exists)
		assert.Nil(t, err)

		err = store.Create(&Tool{ID: "3", Name: "Orbit"})
		assert.Nil(t, err)

		exists, err = store.Exists("3", &Tool{})
		assert.True(t, exists)
		assert.Nil(t, err)
	})
}
