package assistant

import (
	"fmt"
	"strings"

	"github.com/loophealth/voicebot/internal/retrieval"
)

// SystemPrompt is the fixed framing sent with every model call. The decline
// line must match verbatim so the web layer can detect human handoffs.
const SystemPrompt = `You are "Loop AI", a helpful and friendly hospital network assistant for Loop Health.

Your PRIMARY ROLE:
- Help users find hospitals in the Loop Health network
- Provide accurate information about hospital names, addresses, and locations
- Answer queries about specific hospitals and their availability in the network

CRITICAL RULES:
1. ONLY answer hospital-related queries (finding hospitals, confirming if a hospital is in network, hospital addresses, locations)
2. If asked ANYTHING else, respond EXACTLY with:
   "I'm sorry, I can't help with that. I am forwarding this to a human agent."
   Then STOP.
3. If multiple hospitals match a generic query, ask ONE clarifying question naming the candidate cities.
4. Keep answers CONCISE and NATURAL for voice conversation (2-3 sentences maximum)
5. Be friendly and professional
6. If a hospital is not found in the provided context, say: "I couldn't find that hospital in our network. Could you provide more details like the city or full hospital name?"

CONTEXT USAGE:
- Use ONLY the provided hospital context to answer
- Always mention the city when listing hospitals
- Always state the network status when the user asks about a specific hospital`

// Canned replies that need no model call.
const (
	replyOutOfScope  = "I'm sorry, I can't help with that. I am forwarding this to a human agent."
	replyEmptyQuery  = "I didn't catch that. Could you tell me which hospital or city you're asking about?"
	replyNoLocation  = "Sure - which city should I look for hospitals in?"
	replyUnavailable = "I'm having trouble searching our hospital network right now. Could you try asking again in a moment?"
	replyFailure     = "I'm having trouble processing your request. Please try again."
	replyNoContext   = "I couldn't find that hospital in our network. Could you provide more details like the city or full hospital name?"
)

// CannedReply returns the direct response for outcomes that skip the model,
// or "" when a model call is required.
func CannedReply(outcome retrieval.Outcome) string {
	switch outcome.Kind {
	case retrieval.KindOutOfScope:
		return replyOutOfScope
	case retrieval.KindNeedsClarification:
		switch outcome.Reason {
		case retrieval.ReasonEmptyQuery:
			return replyEmptyQuery
		case retrieval.ReasonMissingLocation:
			return replyNoLocation
		case retrieval.ReasonMultipleCities:
			return fmt.Sprintf(
				"I found that hospital in more than one city: %s. Which city are you looking in?",
				strings.Join(outcome.Cities, ", "))
		default:
			return replyUnavailable
		}
	}
	return ""
}

// BuildContext renders the retrieved records into the context block the model
// answers from.
func BuildContext(outcome retrieval.Outcome) string {
	records := outcome.AllRecords()
	if len(records) == 0 {
		return "No hospitals found matching this query in our network database."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant hospital(s):\n\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, r.Name, r.City)
		fmt.Fprintf(&b, "   Address: %s\n", r.Address)
		fmt.Fprintf(&b, "   Network status: %s\n", r.NetworkStatus())
	}
	return b.String()
}

// BuildPrompt assembles the user message for a model call.
func BuildPrompt(outcome retrieval.Outcome, utterance string) string {
	return fmt.Sprintf(
		"Context from hospital database:\n%s\nUser query: %s\n\nProvide a concise, natural response suitable for voice conversation (2-3 sentences max).",
		BuildContext(outcome), utterance)
}
