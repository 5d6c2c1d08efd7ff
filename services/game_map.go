package services

import (
	"math/rand"
	"sync"

	"gridrealm/server/models"
)

// GameMap is the spatial index of the board: every occupied cell maps to
// the entities standing on it.
type GameMap struct {
	size  int
	cells map[models.Position][]models.Entity
	mutex sync.RWMutex
}

// NewGameMap creates an empty square board
func NewGameMap(size int) *GameMap {
	return &GameMap{
		size:  size,
		cells: make(map[models.Position][]models.Entity),
	}
}

// IsValidPosition reports whether pos lies on the board
func (gm *GameMap) IsValidPosition(pos models.Position) bool {
	return pos.Row >= 0 && pos.Row < gm.size && pos.Col >= 0 && pos.Col < gm.size
}

// IsWall reports whether a wall stands at pos
func (gm *GameMap) IsWall(pos models.Position) bool {
	gm.mutex.RLock()
	defer gm.mutex.RUnlock()

	for _, e := range gm.cells[pos] {
		if item, ok := e.(*models.Item); ok && item.Kind == models.ItemWall {
			return true
		}
	}
	return false
}

// IsBlocked reports whether any entity at pos stops movement
func (gm *GameMap) IsBlocked(pos models.Position) bool {
	gm.mutex.RLock()
	defer gm.mutex.RUnlock()

	for _, e := range gm.cells[pos] {
		if models.Blocks(e) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing at all stands at pos
func (gm *GameMap) IsEmpty(pos models.Position) bool {
	gm.mutex.RLock()
	defer gm.mutex.RUnlock()

	return len(gm.cells[pos]) == 0
}

// EntitiesAt returns a copy of the entities at pos
func (gm *GameMap) EntitiesAt(pos models.Position) []models.Entity {
	gm.mutex.RLock()
	defer gm.mutex.RUnlock()

	entities := gm.cells[pos]
	if len(entities) == 0 {
		return nil
	}
	out := make([]models.Entity, len(entities))
	copy(out, entities)
	return out
}

// AddEntity indexes e at its current position
func (gm *GameMap) AddEntity(e models.Entity) {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	pos := e.GetPosition()
	gm.cells[pos] = append(gm.cells[pos], e)
}

// RemoveEntity drops e from the cell at pos and reports whether it was there
func (gm *GameMap) RemoveEntity(pos models.Position, e models.Entity) bool {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	return gm.removeLocked(pos, e)
}

// MoveEntity re-indexes e from one cell to another in a single step
func (gm *GameMap) MoveEntity(e models.Entity, from, to models.Position) {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	gm.removeLocked(from, e)
	gm.cells[to] = append(gm.cells[to], e)
}

func (gm *GameMap) removeLocked(pos models.Position, e models.Entity) bool {
	entities := gm.cells[pos]
	for i, existing := range entities {
		if existing == e {
			entities = append(entities[:i], entities[i+1:]...)
			if len(entities) == 0 {
				delete(gm.cells, pos)
			} else {
				gm.cells[pos] = entities
			}
			return true
		}
	}
	return false
}

// RandomEmptyPosition picks a random cell with nothing on it. It gives up
// after a bounded number of attempts and then scans the board in order.
func (gm *GameMap) RandomEmptyPosition(rng *rand.Rand) (models.Position, bool) {
	gm.mutex.RLock()
	defer gm.mutex.RUnlock()

	for attempts := 0; attempts < 100; attempts++ {
		pos := models.NewPosition(rng.Intn(gm.size), rng.Intn(gm.size))
		if len(gm.cells[pos]) == 0 {
			return pos, true
		}
	}
	for row := 0; row < gm.size; row++ {
		for col := 0; col < gm.size; col++ {
			pos := models.NewPosition(row, col)
			if len(gm.cells[pos]) == 0 {
				return pos, true
			}
		}
	}
	return models.Position{}, false
}

// Clear removes every entity from the board
func (gm *GameMap) Clear() {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	gm.cells = make(map[models.Position][]models.Entity)
}
