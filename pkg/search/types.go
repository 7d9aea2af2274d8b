package search

import (
	"github.com/orneryd/navpath/pkg/cooldown"
	"github.com/orneryd/navpath/pkg/requirement"
	"github.com/orneryd/navpath/pkg/snapshot"
)

// Status is a RouteResponse outcome (§6.3, §7).
type Status string

const (
	StatusOK             Status = "ok"
	StatusUnreachable    Status = "unreachable"
	StatusInvalidStart   Status = "invalid-start"
	StatusInvalidGoal    Status = "invalid-goal"
	StatusExpansionLimit Status = "expansion-limit"
	StatusCancelled      Status = "cancelled"
)

// Options mirrors RouteRequest.options (§6.3).
type Options struct {
	ReturnGeometry bool
	OnlyActions    bool
	Weight         float32 // 1.0 ... 1.5
	Seed           *uint64
	MaxExpansions  uint32 // 0 means "use engine default"
}

// Request mirrors RouteRequest (§6.3), already resolved to Go-native
// types; pkg/server is responsible for the JSON <-> Request mapping.
type Request struct {
	Start        snapshot.Point
	Goal         snapshot.Point
	Requirements []requirement.Input
	Options      Options
	Surge        cooldown.FamilyConfig
	Dive         cooldown.FamilyConfig
}

// Action mirrors one entry of RouteResponse.actions (§6.3).
type Action struct {
	Type     string
	CostMS   uint32
	To       snapshot.Bounds
	TargetID uint32
	Hint     string
}

// Stats mirrors RouteResponse.stats (§6.3).
type Stats struct {
	Expanded      uint32
	DurationUS    uint32
	HeuristicHits uint32
}

// Result mirrors RouteResponse (§6.3).
type Result struct {
	Status  Status
	CostMS  uint32
	Path    []snapshot.Point // nil unless Options.ReturnGeometry
	Actions []Action
	Stats   Stats
}
