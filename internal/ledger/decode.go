package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"carteira/internal/core"
)

// RawMovement mirrors one loosely-typed movement document as the mobile app
// stored it: Portuguese field names, the amount as either a number or a
// string, the date as dd/mm/yyyy. This is the import shape for Firestore
// exports.
type RawMovement struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"usuario_id"`
	Direction string        `json:"tipo_movimentacao"`
	Amount    any           `json:"valor"`
	Date      string        `json:"data"`
	Category  string        `json:"categoria"`
	Desc      string        `json:"descricao"`
	Icon      string        `json:"icone_selecionado"`
	CreatedAt *RawTimestamp `json:"criado_em"`
}

// RawTimestamp is the exported server-timestamp shape.
type RawTimestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int64 `json:"nanoseconds"`
}

// DecodeMovements converts raw documents into typed movements, validating at
// the boundary. Records that cannot be decoded are dropped and reported as
// warnings; the valid remainder is returned in input order. Unrecognized
// categories are not an error, they land in the fallback bucket.
func DecodeMovements(raws []RawMovement) ([]core.Movement, []Warning) {
	movements := make([]core.Movement, 0, len(raws))
	var warnings []Warning

	for i, raw := range raws {
		cents, err := decodeAmount(raw.Amount)
		if err != nil {
			warnings = append(warnings, Warning{Index: i, Field: "valor", Reason: err.Error()})
			continue
		}

		dir := core.Direction(raw.Direction)
		if !dir.Valid() {
			warnings = append(warnings, Warning{Index: i, Field: "tipo_movimentacao", Reason: fmt.Sprintf("unknown direction %q", raw.Direction)})
			continue
		}

		date, err := core.ParseDate(raw.Date)
		if err != nil {
			warnings = append(warnings, Warning{Index: i, Field: "data", Reason: fmt.Sprintf("malformed date %q", raw.Date)})
			continue
		}

		var createdAt time.Time
		if raw.CreatedAt != nil {
			createdAt = time.Unix(raw.CreatedAt.Seconds, raw.CreatedAt.Nanos).UTC()
		}

		movements = append(movements, core.Movement{
			OwnerID:     raw.OwnerID,
			Direction:   dir,
			Amount:      core.Money{Cents: cents},
			Category:    core.Category(raw.Category).Normalize(),
			Description: raw.Desc,
			Icon:        raw.Icon,
			Date:        date,
			CreatedAt:   createdAt,
		})
	}
	return movements, warnings
}

// decodeAmount accepts the value types a loose JSON document can carry.
func decodeAmount(v any) (int64, error) {
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing amount")
	case string:
		cents, err := core.ParseDecimalToCents(val)
		if err != nil {
			return 0, fmt.Errorf("malformed amount %q", val)
		}
		return cents, nil
	case float64:
		if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("invalid amount %v", val)
		}
		return int64(math.Round(val * 100)), nil
	case int64:
		if val < 0 {
			return 0, fmt.Errorf("invalid amount %d", val)
		}
		return val * 100, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil || f < 0 {
			return 0, fmt.Errorf("malformed amount %q", val.String())
		}
		return int64(math.Round(f * 100)), nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}
