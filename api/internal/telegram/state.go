package telegram

import "sync"

var sessions sync.Map // chatID -> *session

// session holds the pending male photo and the in-flight flag of one chat.
type session struct {
	mu       sync.Mutex
	male     string
	inFlight bool
}

func sessionFor(chatID int64) *session {
	v, _ := sessions.LoadOrStore(chatID, &session{})
	return v.(*session)
}

// resetSession drops the pending male photo. A running analysis keeps the
// chat busy until it reports.
func resetSession(chatID int64) {
	s := sessionFor(chatID)
	s.mu.Lock()
	s.male = ""
	s.mu.Unlock()
}

func (s *session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// add stores the first photo as male. The second completes the pair, clears
// the slot and marks the chat in flight.
func (s *session) add(img string) (male, female string, ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.male == "" {
		s.male = img
		return "", "", false
	}
	male, female = s.male, img
	s.male = ""
	s.inFlight = true
	return male, female, true
}

func (s *session) done() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}
