// Package session assembles the day's review queue on top of the leitner
// engine: active-rotation cards plus everything whose interval has
// elapsed, shuffled for presentation.
package session

import (
	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/leitner"
)

// Entry is one card queued for presentation. WasReversed records whether
// front and back are swapped for this showing; the flag travels into the
// review log when the card is answered.
type Entry struct {
	Card        *domain.Card
	State       *domain.ReviewState
	WasReversed bool
}

// Session is the assembled review queue for one day. Cards is the
// shuffled presentation order; Box1 and Due are the unshuffled inputs,
// kept separate for diagnostics. Promoted holds the states mutated by the
// box-1 fill so the caller can persist exactly those.
type Session struct {
	Cards    []Entry
	Box1     []*domain.ReviewState
	Due      []*domain.ReviewState
	Promoted []*domain.ReviewState
}

// Build assembles the daily session: top up box 1, collect the active
// rotation, collect due cards (spaced boxes whose due date has arrived,
// plus learned cards whose rest interval has elapsed), roll the reverse
// flag per entry, and shuffle the combined queue.
//
// States in box 0 and states whose card record is missing are silently
// skipped; store drift is expected in an offline-first system, not an
// error.
func Build(cards []*domain.Card, states []*domain.ReviewState, today domain.Date, settings *domain.Settings, rng leitner.RNG) *Session {
	byID := make(map[string]*domain.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	promoted := leitner.AutoFillBox1(states, today, settings.Box1TargetSize, rng)

	var box1 []*domain.ReviewState
	for _, st := range states {
		if st.Box != domain.BoxActive {
			continue
		}
		if byID[st.CardID] == nil {
			continue
		}
		box1 = append(box1, st)
	}

	// Due set: spaced-box entries first, then learned resurfaces. When a
	// state somehow qualifies under both rules the due entry wins because
	// it was inserted first.
	dueSeen := make(map[string]bool)
	var due []*domain.ReviewState
	for _, st := range states {
		if st.IsLearned || st.Box < domain.BoxActive+1 {
			continue
		}
		if byID[st.CardID] == nil || st.DueDate.IsZero() || !st.DueDate.OnOrBefore(today) {
			continue
		}
		dueSeen[st.CardID] = true
		due = append(due, st)
	}
	for _, st := range states {
		if dueSeen[st.CardID] || byID[st.CardID] == nil {
			continue
		}
		if leitner.LearnedDue(st, today, settings) {
			dueSeen[st.CardID] = true
			due = append(due, st)
		}
	}

	entries := make([]Entry, 0, len(box1)+len(due))
	for _, st := range box1 {
		entries = append(entries, Entry{Card: byID[st.CardID], State: st})
	}
	for _, st := range due {
		entries = append(entries, Entry{Card: byID[st.CardID], State: st})
	}
	for i := range entries {
		entries[i].WasReversed = rng() < settings.ReverseProbability
	}
	leitner.Shuffle(entries, rng)

	return &Session{
		Cards:    entries,
		Box1:     box1,
		Due:      due,
		Promoted: promoted,
	}
}
