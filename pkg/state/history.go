package state

import "orchestrator/pkg/providers"

// PruneHistory bounds an in-flight chat history: when history
// exceeds maxMessages, keep the first (system) message and the last
// maxMessages-1 entries, for a pruned length of exactly maxMessages. A
// maxMessages of 0 or a history already within budget is returned
// unchanged.
func PruneHistory(history []providers.Message, maxMessages int) []providers.Message {
	if maxMessages <= 0 || len(history) <= maxMessages {
		return history
	}
	if maxMessages == 1 {
		return []providers.Message{history[0]}
	}

	pruned := make([]providers.Message, 0, maxMessages)
	pruned = append(pruned, history[0])
	tailStart := len(history) - (maxMessages - 1)
	pruned = append(pruned, history[tailStart:]...)
	return pruned
}
