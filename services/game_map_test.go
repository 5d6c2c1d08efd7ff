package services

import (
	"math/rand"
	"testing"

	"gridrealm/server/models"
)

func TestGameMap_AddMoveRemove(t *testing.T) {
	gm := NewGameMap(15)
	p := models.NewPlayer(1, "P", models.ClassWarrior)
	p.Position = models.NewPosition(3, 3)
	potion := models.NewItem(1, models.ItemLifePotion, models.NewPosition(3, 4), 0)

	gm.AddEntity(p)
	gm.AddEntity(potion)
	if !gm.IsBlocked(p.Position) {
		t.Error("player cell should be blocked")
	}
	if gm.IsBlocked(potion.Position) {
		t.Error("potion does not block")
	}

	gm.MoveEntity(p, p.Position, potion.Position)
	p.Position = potion.Position
	if !gm.IsEmpty(models.NewPosition(3, 3)) {
		t.Error("old cell should be empty after move")
	}
	if got := len(gm.EntitiesAt(potion.Position)); got != 2 {
		t.Errorf("entities at shared cell = %d, want 2", got)
	}

	if !gm.RemoveEntity(p.Position, p) {
		t.Error("expected player to be removed")
	}
	if gm.RemoveEntity(p.Position, p) {
		t.Error("second removal should report false")
	}
}

func TestGameMap_EntitiesAtIsACopy(t *testing.T) {
	gm := NewGameMap(5)
	wall := models.NewItem(1, models.ItemWall, models.NewPosition(1, 1), 0)
	gm.AddEntity(wall)

	entities := gm.EntitiesAt(wall.Position)
	entities[0] = nil
	if !gm.IsWall(wall.Position) {
		t.Error("modifying the returned slice must not affect the map")
	}
}

func TestGameMap_IsValidPosition(t *testing.T) {
	gm := NewGameMap(15)
	valid := []models.Position{{Row: 0, Col: 0}, {Row: 14, Col: 14}, {Row: 7, Col: 0}}
	invalid := []models.Position{{Row: -1, Col: 0}, {Row: 0, Col: 15}, {Row: 15, Col: 15}}
	for _, p := range valid {
		if !gm.IsValidPosition(p) {
			t.Errorf("%s should be valid", p)
		}
	}
	for _, p := range invalid {
		if gm.IsValidPosition(p) {
			t.Errorf("%s should be invalid", p)
		}
	}
}

func TestGameMap_RandomEmptyPosition(t *testing.T) {
	gm := NewGameMap(3)
	rng := rand.New(rand.NewSource(1))
	id := 1
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if row == 2 && col == 1 {
				continue
			}
			gm.AddEntity(models.NewItem(id, models.ItemWall, models.NewPosition(row, col), 0))
			id++
		}
	}

	pos, ok := gm.RandomEmptyPosition(rng)
	if !ok || pos != models.NewPosition(2, 1) {
		t.Errorf("RandomEmptyPosition = %s, %v; want the single free cell", pos, ok)
	}

	gm.AddEntity(models.NewItem(id, models.ItemWall, models.NewPosition(2, 1), 0))
	if _, ok := gm.RandomEmptyPosition(rng); ok {
		t.Error("full board should have no free cell")
	}
}
