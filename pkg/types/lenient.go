// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Model replies are loosely typed: counts arrive as "3200", string lists
// arrive as lists of objects, a single string stands in for a list. The
// decoders in this file coerce those shapes so one odd field does not
// discard an otherwise usable reply. Only malformed JSON is an error.

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// looseInt reads a number, or the leading digits of a string such as
// "3200" or "1,100 tokens". Anything else is 0.
func looseInt(raw json.RawMessage) int {
	if isNull(raw) {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return int(math.Round(f))
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return leadingInt(s)
	}
	return 0
}

func leadingInt(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	sign := 1
	if strings.HasPrefix(s, "-") {
		sign, s = -1, s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return sign * n
}

// looseIndex is looseInt that also maps an option letter ("B") to its
// 0-based index.
func looseIndex(raw json.RawMessage) int {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		s = strings.TrimSpace(s)
		if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
			return int(s[0] - 'A')
		}
		if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
			return int(s[0] - 'a')
		}
	}
	return looseInt(raw)
}

// objectLabels are tried in order when a string field arrives as an object.
var objectLabels = []string{"title", "name", "text", "description", "content", "message"}

// looseString reads a string. Lists are joined by newlines, objects are
// reduced to their label and url, and other scalars keep their JSON text.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	case '[':
		return strings.Join(looseStrings(raw), "\n")
	case '{':
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			return describe(m)
		}
	}
	return string(raw)
}

func describe(m map[string]any) string {
	var label string
	for _, k := range objectLabels {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			label = s
			break
		}
	}
	url, _ := m["url"].(string)
	switch {
	case label != "" && url != "":
		return label + " - " + url
	case label != "":
		return label
	case url != "":
		return url
	}
	b, _ := json.Marshal(m)
	return string(b)
}

// looseStrings reads a list whose elements go through looseString. A lone
// scalar or object becomes a one-element list.
func looseStrings(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	if raw[0] != '[' {
		if s := looseString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = looseString(it)
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Outline) UnmarshalJSON(data []byte) error {
	type plain Outline
	aux := struct {
		*plain
		Title                json.RawMessage `json:"title"`
		Overview             json.RawMessage `json:"overview"`
		Objectives           json.RawMessage `json:"objectives"`
		Prerequisites        json.RawMessage `json:"prerequisites"`
		Summary              json.RawMessage `json:"summary"`
		NextSteps            json.RawMessage `json:"next_steps"`
		References           json.RawMessage `json:"references"`
		EstimatedTotalTokens json.RawMessage `json:"estimated_total_tokens"`
		TargetReadingTime    json.RawMessage `json:"target_reading_time"`
		Difficulty           json.RawMessage `json:"difficulty"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Title = looseString(aux.Title)
	o.Overview = looseString(aux.Overview)
	o.Objectives = looseStrings(aux.Objectives)
	o.Prerequisites = looseStrings(aux.Prerequisites)
	o.Summary = looseString(aux.Summary)
	o.NextSteps = looseString(aux.NextSteps)
	o.References = looseStrings(aux.References)
	o.EstimatedTotalTokens = looseInt(aux.EstimatedTotalTokens)
	o.TargetReadingTime = looseString(aux.TargetReadingTime)
	o.Difficulty = Difficulty(strings.ToLower(looseString(aux.Difficulty)))
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *OutlineStep) UnmarshalJSON(data []byte) error {
	var aux struct {
		Step            json.RawMessage `json:"step"`
		Title           json.RawMessage `json:"title"`
		Type            json.RawMessage `json:"type"`
		EstimatedTokens json.RawMessage `json:"estimated_tokens"`
		ContentType     json.RawMessage `json:"content_type"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		*s = OutlineStep{Title: looseString(data)}
		return nil
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = OutlineStep{
		Step:            looseInt(aux.Step),
		Title:           looseString(aux.Title),
		Type:            StepType(strings.ToLower(looseString(aux.Type))),
		EstimatedTokens: looseInt(aux.EstimatedTokens),
		ContentType:     looseString(aux.ContentType),
	}
	return nil
}

// UnmarshalJSON accepts the object form or a bare list of requirements.
func (s *SetupSpec) UnmarshalJSON(data []byte) error {
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] != '{' {
		*s = SetupSpec{Requirements: looseStrings(t)}
		return nil
	}
	var aux struct {
		Requirements json.RawMessage `json:"requirements"`
		Environment  json.RawMessage `json:"environment"`
		Commands     json.RawMessage `json:"commands"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = SetupSpec{
		Requirements: looseStrings(aux.Requirements),
		Environment:  looseStrings(aux.Environment),
		Commands:     looseStrings(aux.Commands),
	}
	return nil
}

// UnmarshalJSON accepts the object form or a bare title string.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		*e = Exercise{Title: looseString(data)}
		return nil
	}
	var aux struct {
		Title           json.RawMessage `json:"title"`
		Difficulty      json.RawMessage `json:"difficulty"`
		EstimatedTokens json.RawMessage `json:"estimated_tokens"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Exercise{
		Title:           looseString(aux.Title),
		Difficulty:      looseString(aux.Difficulty),
		EstimatedTokens: looseInt(aux.EstimatedTokens),
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Assessment) UnmarshalJSON(data []byte) error {
	var aux struct {
		Question     json.RawMessage `json:"question"`
		Options      json.RawMessage `json:"options"`
		CorrectIndex json.RawMessage `json:"correct_index"`
		Explanation  json.RawMessage `json:"explanation"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = Assessment{
		Question:     looseString(aux.Question),
		Options:      looseStrings(aux.Options),
		CorrectIndex: looseIndex(aux.CorrectIndex),
		Explanation:  looseString(aux.Explanation),
	}
	return nil
}

// UnmarshalJSON accepts the object form or a bare message string.
func (c *Callout) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		*c = Callout{Type: "tip", Message: looseString(data)}
		return nil
	}
	var aux struct {
		Type    json.RawMessage `json:"type"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Callout{Type: looseString(aux.Type), Message: looseString(aux.Message)}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Section) UnmarshalJSON(data []byte) error {
	type plain Section
	aux := struct {
		*plain
		Number             json.RawMessage `json:"section_number"`
		Title              json.RawMessage `json:"title"`
		EstimatedTokens    json.RawMessage `json:"estimated_tokens"`
		PrerequisitesCheck json.RawMessage `json:"prerequisites_check"`
		NextSectionHint    json.RawMessage `json:"next_section_hint"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Number = looseInt(aux.Number)
	s.Title = looseString(aux.Title)
	s.EstimatedTokens = looseInt(aux.EstimatedTokens)
	s.PrerequisitesCheck = looseStrings(aux.PrerequisitesCheck)
	s.NextSectionHint = looseString(aux.NextSectionHint)
	return nil
}
