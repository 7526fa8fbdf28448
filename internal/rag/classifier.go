package rag

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// classifierCacheSize bounds the classification cache; queries repeat across
// multi-query variations and retries.
const classifierCacheSize = 256

// classifierRule matches a query against trigger phrases. Rules are checked
// in order and the first match wins, so classification is deterministic.
type classifierRule struct {
	queryType QueryType
	// anyPrefix matches when the query starts with one of these.
	anyPrefix []string
	// anyContains matches when the query contains one of these.
	anyContains []string
}

var classifierRules = []classifierRule{
	{
		queryType: QueryDocumentList,
		anyContains: []string{
			"what documents", "which documents", "what files", "which files",
			"list documents", "list files", "list the documents",
			"documents do i have", "files do i have", "have i uploaded",
			"documents are uploaded", "files are uploaded", "documents are available",
		},
	},
	{
		queryType: QuerySummary,
		anyPrefix: []string{"summarize", "summarise", "give me a summary", "give me an overview"},
		anyContains: []string{
			"summary of", "overview of", "main points", "key points",
			"key takeaways", "tl;dr", "tldr",
		},
	},
	{
		queryType: QueryDate,
		anyPrefix: []string{"when "},
		anyContains: []string{
			"what date", "what year", "what time", "on which date", "in which year",
			"how long ago", "deadline",
		},
	},
	{
		queryType: QueryEntity,
		anyPrefix: []string{"who ", "whose ", "whom ", "where "},
		anyContains: []string{
			"who is", "who are", "who was", "where is", "where are", "where was",
			"which company", "which person", "which organization", "which city",
		},
	},
	{
		queryType: QueryFact,
		anyPrefix: []string{"what ", "how many", "how much", "define ", "which ", "is ", "are ", "does ", "do ", "did "},
		anyContains: []string{
			"how many", "how much", "definition of", "meaning of",
		},
	},
}

// Classifier assigns a QueryType to a question using ordered keyword rules.
type Classifier struct {
	cache *lru.Cache[string, QueryType]
}

// NewClassifier builds a classifier with its cache.
func NewClassifier() *Classifier {
	cache, _ := lru.New[string, QueryType](classifierCacheSize)
	return &Classifier{cache: cache}
}

// Classify returns the query type. Identical queries always classify the
// same way.
func (c *Classifier) Classify(query string) QueryType {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return QueryGeneral
	}
	if cached, ok := c.cache.Get(normalized); ok {
		return cached
	}

	result := QueryGeneral
	for _, rule := range classifierRules {
		if rule.matches(normalized) {
			result = rule.queryType
			break
		}
	}
	c.cache.Add(normalized, result)
	return result
}

func (r classifierRule) matches(query string) bool {
	for _, prefix := range r.anyPrefix {
		if strings.HasPrefix(query, prefix) {
			return true
		}
	}
	for _, phrase := range r.anyContains {
		if strings.Contains(query, phrase) {
			return true
		}
	}
	return false
}
