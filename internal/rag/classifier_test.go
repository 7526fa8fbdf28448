package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_AssignsExpectedTypes(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		query string
		want  QueryType
	}{
		{"What documents do I have?", QueryDocumentList},
		{"list files", QueryDocumentList},
		{"Which files are uploaded?", QueryDocumentList},
		{"Summarize the quarterly report", QuerySummary},
		{"Give me an overview of the contract", QuerySummary},
		{"What are the main points of the audit?", QuerySummary},
		{"When was the contract signed?", QueryDate},
		{"What year did the merger close?", QueryDate},
		{"Who is the CEO of Acme Corp?", QueryEntity},
		{"Where is the headquarters located?", QueryEntity},
		{"What is the total revenue?", QueryFact},
		{"How many employees were hired?", QueryFact},
		{"Tell me something interesting", QueryGeneral},
		{"", QueryGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.query), "query: %q", tt.query)
	}
}

func TestClassifier_FirstMatchWins(t *testing.T) {
	c := NewClassifier()

	// Mentions both a summary phrase and a date word; the earlier rule
	// in the order decides.
	assert.Equal(t, QuerySummary, c.Classify("Summarize when each milestone happened"))
	// document_list outranks everything
	assert.Equal(t, QueryDocumentList, c.Classify("What documents mention the CEO?"))
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier()

	for i := 0; i < 5; i++ {
		assert.Equal(t, QueryFact, c.Classify("What is the penalty clause?"))
	}
	// Case and surrounding whitespace do not change the outcome
	assert.Equal(t, c.Classify("who founded acme?"), c.Classify("  WHO FOUNDED ACME?  "))
}
