package docstore

import "context"

// AgentStore adapts a Store to the narrow document interface the agents
// consume. An empty topic yields an empty collection so callers can degrade
// without special-casing missing directories.
type AgentStore struct {
	store *Store
}

func NewAgentStore(store *Store) *AgentStore {
	return &AgentStore{store: store}
}

func (a *AgentStore) TopicCollection(_ context.Context, topic string) (string, error) {
	docs, _, err := a.store.ListForTopic(topic)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return a.store.FormatTopicCollection(topic)
}

func (a *AgentStore) SaveReport(_ context.Context, topic, content string) error {
	return a.store.SaveReport(topic, content)
}
