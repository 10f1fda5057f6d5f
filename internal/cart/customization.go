package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Option is one selectable choice inside a customization group.
type Option struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// Selection is what the customer picked for one group: a single option, a set
// of options for multi-select groups, or free text such as instructions.
type Selection struct {
	Options []Option
	Multi   bool
	Text    string
}

// Customizations maps a group id to its selection. Iteration order is irrelevant.
type Customizations map[string]Selection

// MarshalJSON writes the loosely shaped form the UI uses: an object for a
// single option, an array for multi-select groups and a string for free text.
func (s Selection) MarshalJSON() ([]byte, error) {
	switch {
	case s.Multi:
		opts := s.Options
		if opts == nil {
			opts = []Option{}
		}
		return json.Marshal(opts)
	case len(s.Options) > 0:
		return json.Marshal(s.Options[0])
	default:
		return json.Marshal(s.Text)
	}
}

// UnmarshalJSON accepts an option object, an array of options (or bare ids) or a string.
func (s *Selection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Selection{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*s = Selection{Text: text}
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		opts := make([]Option, 0, len(raw))
		for _, item := range raw {
			opt, err := decodeOption(item)
			if err != nil {
				return err
			}
			opts = append(opts, opt)
		}
		*s = Selection{Options: opts, Multi: true}
		return nil
	case '{':
		opt, err := decodeOption(trimmed)
		if err != nil {
			return err
		}
		*s = Selection{Options: []Option{opt}}
		return nil
	default:
		return fmt.Errorf("unsupported customization value %s", string(trimmed))
	}
}

func decodeOption(data json.RawMessage) (Option, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		if strings.TrimSpace(id) == "" {
			return Option{}, fmt.Errorf("customization option id is required")
		}
		return Option{ID: id}, nil
	}
	var opt Option
	if err := json.Unmarshal(data, &opt); err != nil {
		return Option{}, fmt.Errorf("decoding customization option: %w", err)
	}
	if strings.TrimSpace(opt.ID) == "" {
		return Option{}, fmt.Errorf("customization option id is required")
	}
	return opt, nil
}

// PriceModifier sums every selected option's modifier.
func (c Customizations) PriceModifier() decimal.Decimal {
	total := decimal.Zero
	for _, sel := range c {
		for _, opt := range sel.Options {
			total = total.Add(opt.PriceModifier)
		}
	}
	return total
}

// Clone returns a deep copy.
func (c Customizations) Clone() Customizations {
	if c == nil {
		return nil
	}
	out := make(Customizations, len(c))
	for group, sel := range c {
		opts := make([]Option, len(sel.Options))
		copy(opts, sel.Options)
		if sel.Options == nil {
			opts = nil
		}
		out[group] = Selection{Options: opts, Multi: sel.Multi, Text: sel.Text}
	}
	return out
}

type canonicalGroup struct {
	Group   string   `json:"g"`
	Options []string `json:"o,omitempty"`
	Text    string   `json:"t,omitempty"`
}

// IdentityKey derives the canonical line identity for a product and its
// customizations. Groups are sorted by id and option ids are sorted and
// de-duplicated, so insertion order never changes the key. Empty groups are
// ignored and quantity plays no part.
func IdentityKey(productID string, customizations Customizations) string {
	groups := make([]canonicalGroup, 0, len(customizations))
	for group, sel := range customizations {
		ids := make([]string, 0, len(sel.Options))
		seen := make(map[string]struct{}, len(sel.Options))
		for _, opt := range sel.Options {
			if _, dup := seen[opt.ID]; dup {
				continue
			}
			seen[opt.ID] = struct{}{}
			ids = append(ids, opt.ID)
		}
		text := strings.TrimSpace(sel.Text)
		if len(ids) == 0 && text == "" {
			continue
		}
		sort.Strings(ids)
		groups = append(groups, canonicalGroup{Group: group, Options: ids, Text: text})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Group < groups[j].Group })

	// encoding a slice of strings and plain structs cannot fail
	encoded, _ := json.Marshal(groups)
	return productID + "|" + string(encoded)
}
