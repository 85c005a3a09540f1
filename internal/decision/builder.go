package decision

import (
	"sort"

	"github.com/davidahmann/counterpoint/internal/digest"
	"github.com/davidahmann/counterpoint/internal/policy"
	"github.com/davidahmann/counterpoint/pkg/types"
)

const DecisionSchema = "counterpoint.moderation.v1"

type Input struct {
	ContentDigest    string
	MediaType        string
	Severities       policy.Severities
	Decision         policy.Decision
	Policy           types.DecisionPolicy
	Blocklists       []string
	BlocklistMatches []types.BlocklistMatch
	CreatedAt        string
}

// BuildDecision builds a moderation record and computes its decision_id from the
// canonical form of everything except the id itself.
func BuildDecision(in Input) (types.ModerationRecord, error) {
	record := types.ModerationRecord{
		Schema:           DecisionSchema,
		CreatedAt:        in.CreatedAt,
		ContentDigest:    in.ContentDigest,
		MediaType:        in.MediaType,
		Policy:           in.Policy,
		Severities:       make(map[string]int, len(in.Severities)),
		ActionByCategory: make(map[string]string, len(in.Decision.ActionByCategory)),
		SuggestedAction:  in.Decision.SuggestedAction.String(),
		Blocklists:       in.Blocklists,
		BlocklistMatches: in.BlocklistMatches,
	}
	for category, severity := range in.Severities {
		record.Severities[category.String()] = int(severity)
	}
	for category, action := range in.Decision.ActionByCategory {
		record.ActionByCategory[category.String()] = action.String()
	}

	blocklists := append([]string(nil), record.Blocklists...)
	sort.Strings(blocklists)

	matches := make([]any, 0, len(record.BlocklistMatches))
	for _, m := range record.BlocklistMatches {
		matches = append(matches, map[string]any{
			"blocklist_name":      m.BlocklistName,
			"blocklist_item_id":   m.ItemID,
			"blocklist_item_text": m.ItemText,
		})
	}

	signingView := map[string]any{
		"schema":         record.Schema,
		"created_at":     record.CreatedAt,
		"content_digest": record.ContentDigest,
		"media_type":     record.MediaType,
		"policy": map[string]any{
			"policy_id":      record.Policy.PolicyID,
			"policy_version": record.Policy.PolicyVersion,
			"policy_hash":    record.Policy.PolicyHash,
		},
		"severities":         record.Severities,
		"action_by_category": record.ActionByCategory,
		"suggested_action":   record.SuggestedAction,
		"blocklists":         blocklists,
		"blocklist_matches":  matches,
	}

	id, err := digest.Of(signingView)
	if err != nil {
		return types.ModerationRecord{}, err
	}

	record.DecisionID = id
	return record, nil
}
