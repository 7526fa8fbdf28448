package rag

import (
	"strings"
)

// Decision is the router's verdict on how to handle a query.
type Decision string

const (
	DecideRetrieve    Decision = "retrieve"
	DecideDirectReply Decision = "direct_reply"
	DecideClarify     Decision = "clarify"
)

// Route is the router output. RuleID names the rule that fired so answers
// can be traced back to routing behavior.
type Route struct {
	Decision Decision
	RuleID   string
	// Reply is the canned response for direct replies and the clarifying
	// question for clarifications.
	Reply string
}

type directRule struct {
	id     string
	exact  []string
	prefix []string
	reply  string
}

var directRules = []directRule{
	{
		id:    "greeting",
		exact: []string{"hi", "hello", "hey", "hiya", "good morning", "good afternoon", "good evening", "yo"},
		reply: "Hello! Ask me anything about your documents.",
	},
	{
		id:     "thanks",
		exact:  []string{"thanks", "thank you", "thx", "ty", "cheers"},
		prefix: []string{"thanks ", "thank you "},
		reply:  "You're welcome! Anything else you'd like to know?",
	},
	{
		id:    "acknowledgment",
		exact: []string{"ok", "okay", "got it", "cool", "nice", "great", "sounds good", "perfect"},
		reply: "Got it. Let me know if you have another question.",
	},
	{
		id:    "farewell",
		exact: []string{"bye", "goodbye", "see you", "later"},
		reply: "Goodbye! Come back when you have more questions.",
	},
	{
		id:     "capabilities",
		exact:  []string{"help", "what can you do", "what do you do", "how do you work"},
		prefix: []string{"what can you "},
		reply:  "I answer questions about your uploaded documents. Ask about their contents, request a summary, or ask which documents you have.",
	},
}

// lonePronouns are queries with no referent of their own; without
// conversational history they cannot be answered.
var lonePronouns = map[string]bool{
	"it": true, "that": true, "this": true, "they": true, "them": true,
	"those": true, "these": true, "he": true, "she": true, "him": true, "her": true,
}

// Router decides whether a query needs retrieval at all.
type Router struct{}

// NewRouter builds a router.
func NewRouter() *Router { return &Router{} }

// Route inspects the query. documentCount is the corpus size; very short
// queries are only ambiguous when more than one document could be meant.
func (r *Router) Route(query string, documentCount int) Route {
	normalized := strings.ToLower(strings.TrimSpace(query))
	normalized = strings.TrimRight(normalized, "!.?")

	for _, rule := range directRules {
		for _, exact := range rule.exact {
			if normalized == exact {
				return Route{Decision: DecideDirectReply, RuleID: rule.id, Reply: rule.reply}
			}
		}
		for _, prefix := range rule.prefix {
			if strings.HasPrefix(normalized, prefix) {
				return Route{Decision: DecideDirectReply, RuleID: rule.id, Reply: rule.reply}
			}
		}
	}

	words := strings.Fields(normalized)
	if len(words) == 1 && lonePronouns[words[0]] {
		return Route{
			Decision: DecideClarify,
			RuleID:   "lone_pronoun",
			Reply:    "Could you say what \"" + words[0] + "\" refers to? I don't keep conversation history.",
		}
	}
	if len(words) > 0 && len(words) < 3 && documentCount > 1 {
		return Route{
			Decision: DecideClarify,
			RuleID:   "short_query",
			Reply:    "Could you be more specific? You have several documents; a fuller question helps me find the right one.",
		}
	}

	return Route{Decision: DecideRetrieve, RuleID: "default"}
}
