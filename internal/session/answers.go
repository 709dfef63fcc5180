package session

import "fmt"

// answerStore is the sparse question-index → answer map for one session.
// It lives exactly as long as the owning session.
type answerStore struct {
	total  int
	values map[int]string
}

func newAnswerStore(total int) *answerStore {
	return &answerStore{total: total, values: make(map[int]string)}
}

// set records an answer, unconditionally overwriting any prior value.
// An out-of-range index is a programming error in the calling adapter,
// not a user-facing failure.
func (s *answerStore) set(index int, value string) {
	if index < 0 || index >= s.total {
		panic(fmt.Sprintf("answer index %d out of range [0,%d)", index, s.total))
	}
	s.values[index] = value
}

func (s *answerStore) get(index int) (string, bool) {
	v, ok := s.values[index]
	return v, ok
}

func (s *answerStore) answered() int { return len(s.values) }

func (s *answerStore) unanswered() int { return s.total - len(s.values) }

// snapshot returns a copy safe to hand to the submission pipeline.
func (s *answerStore) snapshot() map[int]string {
	out := make(map[int]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
