package progress

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rpggio/fieldlog/internal/domain/project"
)

// maxQuantity keeps coerced values inside the exactly representable integer range.
const maxQuantity = 1 << 53

// Quantity is a lenient non-negative number. It accepts JSON numbers, numeric
// strings and null; anything unparseable decodes to zero.
type Quantity float64

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	*q = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
	} else {
		s = string(data)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	*q = Quantity(v)
	return nil
}

func (q Quantity) value() float64 {
	v := float64(q)
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > maxQuantity {
		return maxQuantity
	}
	return v
}

// ItemInput is an unvalidated item as submitted by a client.
type ItemInput struct {
	Method       string   `json:"method"`
	PointsDone   Quantity `json:"points_done"`
	DepthReached Quantity `json:"depth_reached"`
}

// DecodeItems parses the raw "items" field. A nil raw value means the field was
// absent and yields nil. Any value that is not an array yields an empty list, and
// array elements that are not item objects are skipped.
func DecodeItems(raw json.RawMessage) []ItemInput {
	if raw == nil {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []ItemInput{}
	}
	out := make([]ItemInput, 0, len(elems))
	for _, elem := range elems {
		var in ItemInput
		if err := json.Unmarshal(elem, &in); err != nil || bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
			continue
		}
		out = append(out, in)
	}
	return out
}

// Normalize drops unknown methods and coerces quantities to non-negative values.
// Points are truncated to whole points.
func Normalize(inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		m, ok := project.ParseMethod(in.Method)
		if !ok {
			continue
		}
		items = append(items, Item{
			Method:       m,
			PointsDone:   int64(math.Trunc(in.PointsDone.value())),
			DepthReached: in.DepthReached.value(),
		})
	}
	return items
}
