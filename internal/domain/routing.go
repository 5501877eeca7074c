package domain

type Route string

const (
	RouteAIOnly        Route = "ai_only"
	RouteCommunityVote Route = "community_vote"
	RouteDeferArchived Route = "defer_archived"
)

// RouteDecision is the routing collaborator's answer for one aggregated
// claim. Window and minimum votes are only meaningful for community_vote.
type RouteDecision struct {
	Route            Route    `json:"route"`
	Reason           string   `json:"reason,omitempty"`
	Urgency          Urgency  `json:"urgency,omitempty"`
	VotingWindowSecs int      `json:"voting_window_secs,omitempty"`
	MinVotesRequired int      `json:"min_votes_required,omitempty"`
	TargetCohorts    []string `json:"target_cohorts,omitempty"`
}
