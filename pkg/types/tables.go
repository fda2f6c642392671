package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "cp_"

const (
	TABLE_PROVIDER_CONFIG = TableName("provider_config")
	TABLE_KNOWLEDGE_DOC   = TableName("knowledge_doc")
	TABLE_KNOWLEDGE_CHUNK = TableName("knowledge_chunk")
	TABLE_EMBEDDING_JOB   = TableName("embedding_job")
	TABLE_CONVERSATION    = TableName("conversation")
	TABLE_CHAT_MESSAGE    = TableName("chat_message")
	TABLE_FEEDBACK        = TableName("feedback")
)
