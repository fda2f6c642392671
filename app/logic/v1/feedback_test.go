package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTopicTerms(t *testing.T) {
	terms := extractTopicTerms("What is the GDPR retention policy for us?")
	assert.Equal(t, []string{"gdpr", "retention", "policy"}, terms)
}

func TestExtractTopicTerms_Han(t *testing.T) {
	terms := extractTopicTerms("数据 保留 多久")
	assert.Contains(t, terms, "数据")
	assert.Contains(t, terms, "保留")
}

func TestExtractTopicTerms_ShortAndStopwordsDropped(t *testing.T) {
	assert.Empty(t, extractTopicTerms("is it ok"))
	assert.Empty(t, extractTopicTerms("what would they have been"))
}
