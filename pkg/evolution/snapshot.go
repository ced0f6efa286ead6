package evolution

import (
	"encoding/json"
)

// PersonRecord tracks one person across the cumulative insight history.
type PersonRecord struct {
	FirstSeen    string   `json:"first_seen"`
	Interactions int      `json:"interactions"`
	Roles        []string `json:"roles,omitempty"`
}

// ConceptRecord tracks a concept's lifecycle across months.
type ConceptRecord struct {
	FirstSeen string         `json:"first_seen"`
	LastSeen  string         `json:"last_seen"`
	Frequency map[string]int `json:"frequency"`
}

// TaskRecord is the latest known state of a tracked task.
type TaskRecord struct {
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Month  string   `json:"month"`
	People []string `json:"people,omitempty"`
}

// Snapshot is the cumulative insight state carried month over month. A
// pass receives the previous snapshot as an immutable input and returns a
// new one; snapshots are persisted keyed by period and never mutated in
// place.
type Snapshot struct {
	Period           string                   `json:"period"`
	PeopleNetwork    map[string]PersonRecord  `json:"people_network"`
	ConceptEvolution map[string]ConceptRecord `json:"concept_evolution"`
	TaskTracking     map[string]TaskRecord    `json:"task_tracking"`
}

// EmptySnapshot is the zero state fed into the first month of a run.
func EmptySnapshot() Snapshot {
	return Snapshot{
		PeopleNetwork:    map[string]PersonRecord{},
		ConceptEvolution: map[string]ConceptRecord{},
		TaskTracking:     map[string]TaskRecord{},
	}
}

// clone deep-copies the snapshot so merges never touch the input.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Period:           s.Period,
		PeopleNetwork:    make(map[string]PersonRecord, len(s.PeopleNetwork)),
		ConceptEvolution: make(map[string]ConceptRecord, len(s.ConceptEvolution)),
		TaskTracking:     make(map[string]TaskRecord, len(s.TaskTracking)),
	}
	for k, v := range s.PeopleNetwork {
		v.Roles = append([]string(nil), v.Roles...)
		out.PeopleNetwork[k] = v
	}
	for k, v := range s.ConceptEvolution {
		freq := make(map[string]int, len(v.Frequency))
		for month, n := range v.Frequency {
			freq[month] = n
		}
		v.Frequency = freq
		out.ConceptEvolution[k] = v
	}
	for k, v := range s.TaskTracking {
		v.People = append([]string(nil), v.People...)
		out.TaskTracking[k] = v
	}
	return out
}

// Merge folds one month's parsed result into the previous snapshot and
// returns the new state. The input snapshot is left untouched.
func Merge(prev Snapshot, month string, result MonthResult) Snapshot {
	next := prev.clone()
	next.Period = month

	for person, interactions := range result.PeopleNetwork {
		record, ok := next.PeopleNetwork[person]
		if !ok {
			record = PersonRecord{FirstSeen: month}
		}
		record.Interactions += interactions
		next.PeopleNetwork[person] = record
	}

	for concept, count := range result.Concepts {
		record, ok := next.ConceptEvolution[concept]
		if !ok {
			record = ConceptRecord{FirstSeen: month, Frequency: map[string]int{}}
		}
		record.LastSeen = month
		record.Frequency[month] = count
		next.ConceptEvolution[concept] = record
	}

	for _, task := range result.Gantt.Tasks {
		id := task.ID
		if id == "" {
			id = task.Name
		}
		next.TaskTracking[id] = TaskRecord{
			Name:   task.Name,
			Status: task.Status,
			Month:  month,
			People: task.People,
		}
	}

	return next
}

// Encode serializes the snapshot for persistence.
func (s Snapshot) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeSnapshot restores a persisted snapshot payload.
func DecodeSnapshot(payload string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Snapshot{}, err
	}
	if s.PeopleNetwork == nil {
		s.PeopleNetwork = map[string]PersonRecord{}
	}
	if s.ConceptEvolution == nil {
		s.ConceptEvolution = map[string]ConceptRecord{}
	}
	if s.TaskTracking == nil {
		s.TaskTracking = map[string]TaskRecord{}
	}
	return s, nil
}
