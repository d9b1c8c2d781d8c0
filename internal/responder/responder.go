// Package responder picks the automated reply for an incoming chat message.
//
// Keyword rules are checked in a fixed order and the first match wins. When
// no rule matches, a fallback reply is drawn at random from the replies not
// used recently; once every fallback has been used recently the whole set is
// eligible again.
package responder

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// DefaultHistorySize is how many recent fallback replies are avoided.
const DefaultHistorySize = 5

// TimeFormat renders the clock for the time rule.
const TimeFormat = "3:04:05 PM"

// Replies for the keyword rules.
const (
	GreetingReply  = "Hello there! How can I help you today?"
	WellbeingReply = "I'm doing well, thank you! How about you?"
	IdentityReply  = "I'm ChatFlow Bot! I'm here to chat with you."
	GratitudeReply = "You're welcome! Is there anything else you'd like to talk about?"
	FarewellReply  = "Goodbye! It was nice chatting with you!"
	WeatherReply   = "I'm not sure about the weather, but I hope it's nice where you are!"
	HelpReply      = "I'm here to chat with you! Just type anything and I'll respond."
	timeReplyLead  = "According to my clock, it's "
)

// DefaultFallbacks are used when no keyword rule matches.
var DefaultFallbacks = []string{
	"That's interesting! Tell me more about that.",
	"I see what you're saying. How do you feel about it?",
	"Thanks for sharing! What else is on your mind?",
	"I understand. Can you elaborate on that?",
	"That's a great point! What made you think of that?",
	"Fascinating! I'd love to hear more details.",
	"I appreciate you sharing that with me.",
	"That sounds important. Could you explain further?",
	"I'm following along. What happened next?",
	"Interesting perspective! How did you come to that conclusion?",
}

type rule struct {
	triggers []string
	reply    func(now time.Time) string
}

func fixed(s string) func(time.Time) string {
	return func(time.Time) string { return s }
}

// rules are evaluated in order; earlier rules take priority.
var rules = []rule{
	{triggers: []string{"hello", "hi", "hey"}, reply: fixed(GreetingReply)},
	{triggers: []string{"how are you"}, reply: fixed(WellbeingReply)},
	{triggers: []string{"name"}, reply: fixed(IdentityReply)},
	{triggers: []string{"thank"}, reply: fixed(GratitudeReply)},
	{triggers: []string{"bye", "goodbye"}, reply: fixed(FarewellReply)},
	{triggers: []string{"weather"}, reply: fixed(WeatherReply)},
	{triggers: []string{"time"}, reply: TimeReply},
	{triggers: []string{"help"}, reply: fixed(HelpReply)},
}

// TimeReply is the reply of the time rule at the given instant.
func TimeReply(now time.Time) string {
	return timeReplyLead + now.Format(TimeFormat)
}

// Policy maps message text to a reply. It owns the recent fallback history
// and is safe for concurrent use.
type Policy struct {
	mu        sync.Mutex
	history   *History
	fallbacks []string
	intN      func(n int) int
	now       func() time.Time
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock sets the clock used by the time rule.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// WithRand sets the random source used for fallback selection.
func WithRand(r *rand.Rand) Option {
	return func(p *Policy) { p.intN = r.IntN }
}

// WithFallbacks replaces the fallback reply set.
func WithFallbacks(fallbacks []string) Option {
	return func(p *Policy) {
		p.fallbacks = append([]string(nil), fallbacks...)
	}
}

// WithHistorySize sets how many recent fallbacks are avoided.
func WithHistorySize(n int) Option {
	return func(p *Policy) { p.history = NewHistory(n) }
}

// New creates a Policy with the default rules and fallbacks.
func New(opts ...Option) *Policy {
	p := &Policy{
		history:   NewHistory(DefaultHistorySize),
		fallbacks: append([]string(nil), DefaultFallbacks...),
		intN:      rand.IntN,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Respond returns the reply for userText.
func (p *Policy) Respond(userText string) string {
	text := strings.ToLower(strings.TrimSpace(userText))

	for _, r := range rules {
		for _, trigger := range r.triggers {
			if strings.Contains(text, trigger) {
				return r.reply(p.now())
			}
		}
	}

	return p.fallback()
}

// fallback selects a reply not in the recent history, or any reply once the
// history covers the whole set.
func (p *Policy) fallback() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := make([]string, 0, len(p.fallbacks))
	for _, f := range p.fallbacks {
		if !p.history.Contains(f) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		candidates = p.fallbacks
	}

	chosen := candidates[p.intN(len(candidates))]
	p.history.Push(chosen)
	return chosen
}

// History returns the recent fallback replies, oldest first.
func (p *Policy) History() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Snapshot()
}
