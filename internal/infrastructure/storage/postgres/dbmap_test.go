package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type auditedRow struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type vehicleRow struct {
	auditedRow

	ID       string `db:"id"`
	Plate    string `db:"plate"`
	Version  int    `db:"version"`
	Notes    string `db:"-"`
	internal string
	Untagged string
}

func TestStructToMap(t *testing.T) {
	now := time.Now()
	row := vehicleRow{
		auditedRow: auditedRow{CreatedAt: now, UpdatedAt: now},
		ID:         "v-1",
		Plate:      "AB123CD",
		Version:    2,
		Notes:      "ignored",
		internal:   "ignored",
		Untagged:   "ignored",
	}

	m := StructToMap(row)

	assert.Equal(t, map[string]any{
		"id":         "v-1",
		"plate":      "AB123CD",
		"version":    2,
		"created_at": now,
		"updated_at": now,
	}, m)
}

func TestStructToMap_PointerAndNil(t *testing.T) {
	row := &vehicleRow{ID: "v-2", Plate: "XY987Z", Version: 1}

	m := StructToMap(row)
	assert.Equal(t, "v-2", m["id"])
	assert.Equal(t, "XY987Z", m["plate"])

	var nilRow *vehicleRow
	assert.Empty(t, StructToMap(nilRow))
	assert.Empty(t, StructToMap("not a struct"))
}

func TestStructToMap_TagOptions(t *testing.T) {
	type taggedRow struct {
		Name string `db:"name,omitempty"`
	}

	m := StructToMap(taggedRow{Name: "north garage"})
	assert.Equal(t, map[string]any{"name": "north garage"}, m)
}
