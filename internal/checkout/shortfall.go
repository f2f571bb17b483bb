package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/pkg/db/models"
)

// Shortfall describes a cart line that cannot be filled from current stock.
type Shortfall struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// findShortfalls checks every line against the locked stock levels in cart
// order. A product listed on several lines draws from one pool, so a later
// line only sees what earlier lines left. A product without a stock row has
// zero available.
func findShortfalls(lines []cart.Line, levels map[uuid.UUID]models.Stock) []Shortfall {
	remaining := make(map[uuid.UUID]int, len(levels))
	for id, level := range levels {
		remaining[id] = level.Quantity
	}

	var shortfalls []Shortfall
	for _, line := range lines {
		available := remaining[line.ProductID]
		if line.Quantity > available {
			shortfalls = append(shortfalls, Shortfall{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Quantity,
				Available:   available,
			})
			continue
		}
		remaining[line.ProductID] = available - line.Quantity
	}
	return shortfalls
}
