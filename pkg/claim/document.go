package claim

import (
	"encoding/json"
)

// Resource types addressed by the composer
const (
	ResourcePatient = "Patient"
	ResourcePreauth = "Preauth"
)

// Document is a claim document private to one submission
type Document map[string]any

// MarshalJSON keeps a nil document encoding as an empty object
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

// Resource returns the resource of the first entry with the given resource
// type, or nil if there is none.
func (d Document) Resource(resourceType string) map[string]any {
	entries, ok := d["entry"].([]any)
	if !ok {
		return nil
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		resource, ok := entry["resource"].(map[string]any)
		if !ok {
			continue
		}
		if rt, _ := resource["resourceType"].(string); rt == resourceType {
			return resource
		}
	}
	return nil
}

// PatientName returns the text of the Patient's primary name
func (d Document) PatientName() string {
	patient := d.Resource(ResourcePatient)
	if patient == nil {
		return ""
	}
	names, ok := patient["name"].([]any)
	if !ok || len(names) == 0 {
		return ""
	}
	primary, ok := names[0].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := primary["text"].(string)
	return text
}

// PatientGender returns the Patient's gender
func (d Document) PatientGender() string {
	patient := d.Resource(ResourcePatient)
	if patient == nil {
		return ""
	}
	gender, _ := patient["gender"].(string)
	return gender
}

// PreauthPatientDisplay returns the patient display name on the Preauth entry
func (d Document) PreauthPatientDisplay() string {
	preauth := d.Resource(ResourcePreauth)
	if preauth == nil {
		return ""
	}
	patient, ok := preauth["patient"].(map[string]any)
	if !ok {
		return ""
	}
	display, _ := patient["display"].(string)
	return display
}

// PreauthTotal returns the Preauth monetary total and whether it was present
func (d Document) PreauthTotal() (float64, bool) {
	preauth := d.Resource(ResourcePreauth)
	if preauth == nil {
		return 0, false
	}
	total, ok := preauth["total"].(map[string]any)
	if !ok {
		return 0, false
	}
	value, ok := total["value"].(float64)
	return value, ok
}

// deepCopy copies the JSON value tree produced by encoding/json.
// Scalars are immutable and shared.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case Document:
		return Document(deepCopy(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return t
	}
}
