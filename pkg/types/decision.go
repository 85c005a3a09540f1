package types

type ModerationRecord struct {
	Schema           string            `json:"schema"`
	DecisionID       string            `json:"decision_id"`
	CreatedAt        string            `json:"created_at"`
	ContentDigest    string            `json:"content_digest"`
	MediaType        string            `json:"media_type"`
	Policy           DecisionPolicy    `json:"policy"`
	Severities       map[string]int    `json:"severities"`
	ActionByCategory map[string]string `json:"action_by_category"`
	SuggestedAction  string            `json:"suggested_action"`
	Blocklists       []string          `json:"blocklists,omitempty"`
	BlocklistMatches []BlocklistMatch  `json:"blocklist_matches,omitempty"`
}

type DecisionPolicy struct {
	PolicyID      string `json:"policy_id"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash,omitempty"`
}

type BlocklistMatch struct {
	BlocklistName string `json:"blocklist_name"`
	ItemID        string `json:"blocklist_item_id"`
	ItemText      string `json:"blocklist_item_text"`
}
