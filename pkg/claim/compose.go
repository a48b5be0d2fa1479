package claim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary total. It decodes from a JSON number or a numeric string.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", s)
		}
		*a = Amount(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	*a = Amount(v)
	return nil
}

// Fields are the caller-supplied values applied onto a template.
// Zero values mean "not provided", including an amount of 0.
type Fields struct {
	Name   string
	Gender string
	Amount *Amount
}

// Compose builds a new claim document from the template and fields.
// The template is never modified.
func Compose(tmpl *Template, f Fields) Document {
	doc := tmpl.Document()

	if patient := doc.Resource(ResourcePatient); patient != nil {
		if f.Gender != "" {
			patient["gender"] = f.Gender
		}
		if f.Name != "" {
			if names, ok := patient["name"].([]any); ok && len(names) > 0 {
				if primary, ok := names[0].(map[string]any); ok {
					primary["text"] = f.Name
				}
			}
		}
	}

	if preauth := doc.Resource(ResourcePreauth); preauth != nil {
		if f.Name != "" {
			if patient, ok := preauth["patient"].(map[string]any); ok {
				patient["display"] = f.Name
			}
		}
		if f.Amount != nil && *f.Amount != 0 {
			total, ok := preauth["total"].(map[string]any)
			if !ok {
				total = make(map[string]any)
				preauth["total"] = total
			}
			total["value"] = float64(*f.Amount)
		}
	}

	return doc
}
