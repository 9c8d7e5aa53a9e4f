package partition

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
)

// DefaultValue is one field stamped onto records that land in a distribution slot.
type DefaultValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// DistributionDefaults maps a slot number (1..max) to the ordered values for that slot.
type DistributionDefaults map[int][]DefaultValue

// Partition is the slice of the partition row the distribution assigner needs.
type Partition struct {
	ID                   uuid.UUID            `json:"id"`
	OrgID                uuid.UUID            `json:"org_id"`
	UseDistributionOrder bool                 `json:"use_distribution_order"`
	MaxDistributionOrder int                  `json:"max_distribution_order"`
	LastAssignedOrder    int                  `json:"last_assigned_order"`
	DistributionDefaults DistributionDefaults `json:"distribution_defaults"`
}

// Flatten returns the field/value mapping for a slot, skipping empty values.
// Later entries for the same field win.
func (d DistributionDefaults) Flatten(order int) map[string]string {
	out := map[string]string{}
	for _, v := range d[order] {
		if v.Field == "" || v.Value == "" {
			continue
		}
		out[v.Field] = v.Value
	}
	return out
}

// ParseDistributionDefaults decodes the JSON column. Slot keys are stored as strings.
func ParseDistributionDefaults(raw []byte) (DistributionDefaults, error) {
	out := DistributionDefaults{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	var byKey map[string][]DefaultValue
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, err
	}
	for key, values := range byKey {
		slot, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[slot] = values
	}
	return out, nil
}
