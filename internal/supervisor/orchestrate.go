package supervisor

import (
	"context"
	"fmt"
	"time"

	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/types"
)

const (
	avoidSimilarProbeLimit = 5
	avoidSimilarSamples    = 3
	avoidSimilarPrefix     = 300
	orchestratedTaskBudget = 5 * time.Minute
)

// buildTask assembles the work order for one notebook, probing the
// notebook's own archive so the gatherer can steer away from what it already
// holds.
func (s *Supervisor) buildTask(ctx context.Context, p types.Profile, specificQuery string) types.CollectionTask {
	task := types.CollectionTask{
		NotebookID:    p.NotebookID,
		Intent:        p.Intent,
		FocusAreas:    append([]string(nil), p.FocusAreas...),
		Sources:       p.Sources.Clone(),
		Mode:          p.CollectionMode,
		SpecificQuery: specificQuery,
		Deadline:      time.Now().Add(orchestratedTaskBudget),
	}

	if p.Intent != "" {
		reader := memory.Reader{Agent: memory.AgentGatherer, NotebookID: p.NotebookID}
		hits, err := s.deps.Memory.Archive.Search(ctx, reader, p.Intent, memory.SearchOptions{
			Limit:         avoidSimilarProbeLimit,
			MinSimilarity: 0.3,
		})
		if err != nil {
			logging.SupervisorDebug("avoid-similar probe for %s failed: %v", p.NotebookID, err)
		}
		for i := 0; i < len(hits) && i < avoidSimilarSamples; i++ {
			task.AvoidSimilarTo = append(task.AvoidSimilarTo, firstChars(hits[i].Record.Content, avoidSimilarPrefix))
		}
		if len(task.AvoidSimilarTo) > 0 {
			task.SupervisorDirective = "favor information not already covered by the notebook's existing material"
		}
	}
	return task
}

// OrchestrationResult summarizes one orchestration pass.
type OrchestrationResult struct {
	NotebooksRun int      `json:"notebooks_run"`
	Skipped      int      `json:"skipped"`
	Approved     int      `json:"approved"`
	Queued       int      `json:"queued"`
	Rejected     int      `json:"rejected"`
	Warnings     []string `json:"warnings,omitempty"`
}

// OrchestrateCollection runs the collection cycle over the given notebooks
// (all when nil): build task, delegate to the gatherer, judge, route. A
// notebook's failure is a warning, never an abort.
func (s *Supervisor) OrchestrateCollection(ctx context.Context, notebookIDs []string) *OrchestrationResult {
	timer := logging.StartTimer(logging.CategorySupervisor, "OrchestrateCollection")
	defer timer.Stop()

	result := &OrchestrationResult{}
	if notebookIDs == nil {
		ids, err := s.deps.Notebooks.List(ctx)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("listing notebooks: %v", err))
			return result
		}
		notebookIDs = ids
	}

	for _, id := range notebookIDs {
		p, err := s.deps.Profiles.Load(id)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("profile %s: %v", id, err))
			continue
		}
		if p.Intent == "" || p.CollectionMode == types.CollectionManual {
			result.Skipped++
			continue
		}

		g, err := s.deps.Registry.Create(ctx, id)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("gatherer %s: %v", id, err))
			continue
		}

		task := s.buildTask(ctx, p, "")
		run, err := g.ExecuteCollectionTask(ctx, task)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("collection %s: %v", id, err))
			continue
		}
		result.NotebooksRun++
		result.Warnings = append(result.Warnings, run.Warnings...)

		judgments := s.JudgeCollection(ctx, id, run.Items, p.Intent)
		a, q, r, warns := s.routeJudged(ctx, g, p, run.Items, judgments)
		result.Approved += a
		result.Queued += q
		result.Rejected += r
		result.Warnings = append(result.Warnings, warns...)
	}

	logging.Supervisor("orchestration: %d notebooks, approved=%d queued=%d rejected=%d",
		result.NotebooksRun, result.Approved, result.Queued, result.Rejected)
	return result
}

// ImmediateResult is the user-facing outcome of a "collect now".
type ImmediateResult struct {
	NotebookID     string        `json:"notebook_id"`
	ItemsCollected int           `json:"items_collected"`
	Approved       []string      `json:"approved,omitempty"`
	Pending        []string      `json:"pending,omitempty"`
	Rejected       []string      `json:"rejected,omitempty"`
	Filtered       []string      `json:"filtered,omitempty"`
	Message        string        `json:"message,omitempty"`
	Duration       time.Duration `json:"duration"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// AssignImmediateCollection handles a user-triggered collection. After
// judgment a hard confidence floor applies: items below 0.50 are filtered no
// matter what the judge said. The queue path can still auto-approve under
// mixed mode; those items are recounted as approved.
func (s *Supervisor) AssignImmediateCollection(ctx context.Context, notebookID, specificQuery string) (*ImmediateResult, error) {
	start := time.Now()
	p, err := s.deps.Profiles.Load(notebookID)
	if err != nil {
		return nil, err
	}
	g, err := s.deps.Registry.Create(ctx, notebookID)
	if err != nil {
		return nil, err
	}

	task := s.buildTask(ctx, p, specificQuery)
	run, err := g.ExecuteCollectionTask(ctx, task)
	if err != nil {
		return nil, err
	}

	result := &ImmediateResult{
		NotebookID:     notebookID,
		ItemsCollected: len(run.Items),
		Warnings:       run.Warnings,
	}
	if len(run.Items) == 0 {
		result.Message = "nothing new found this run"
		result.Duration = time.Since(start)
		return result, nil
	}

	judgments := s.JudgeCollection(ctx, notebookID, run.Items, p.Intent)
	byID := map[string]types.Judgment{}
	for _, j := range judgments {
		byID[j.ItemID] = j
	}

	for _, item := range run.Items {
		j := byID[item.ID]

		if item.OverallConfidence < types.ConfidenceFloor {
			result.Filtered = append(result.Filtered, item.Title)
			continue
		}

		switch j.Decision {
		case types.DecisionApprove:
			status, warns, serr := g.StoreDirect(ctx, item)
			result.Warnings = append(result.Warnings, warns...)
			if serr != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("storing %q: %v", item.Title, serr))
				continue
			}
			if status == types.StatusApproved {
				result.Approved = append(result.Approved, item.Title)
			} else {
				// Shallow or duplicate at final store: expected filtering.
				result.Filtered = append(result.Filtered, item.Title)
			}
		case types.DecisionReject:
			result.Rejected = append(result.Rejected, item.Title)
			if err := s.deps.Learner.Record(ctx, types.Signal{
				NotebookID: notebookID,
				SignalType: types.SignalItemRejected,
				ItemID:     item.ID,
				Metadata:   map[string]string{"reason": j.Reason},
			}); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("rejection signal: %v", err))
			}
		default:
			status, warns, qerr := g.QueueOrApprove(ctx, item, p.ApprovalMode)
			result.Warnings = append(result.Warnings, warns...)
			if qerr != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("queueing %q: %v", item.Title, qerr))
				continue
			}
			// Mixed mode may auto-approve inside the queue path; recount.
			switch status {
			case types.StatusApproved:
				result.Approved = append(result.Approved, item.Title)
			case types.StatusRejected:
				result.Filtered = append(result.Filtered, item.Title)
			default:
				result.Pending = append(result.Pending, item.Title)
			}
		}
	}

	result.Duration = time.Since(start)
	logging.Supervisor("immediate collect %s: approved=%d pending=%d rejected=%d filtered=%d",
		notebookID, len(result.Approved), len(result.Pending), len(result.Rejected), len(result.Filtered))
	return result, nil
}

// routeJudged applies judgments from an orchestrated run.
func (s *Supervisor) routeJudged(ctx context.Context, g gathererHandle, p types.Profile, items []types.CollectedItem, judgments []types.Judgment) (approved, queued, rejected int, warnings []string) {
	byID := map[string]types.Judgment{}
	for _, j := range judgments {
		byID[j.ItemID] = j
	}
	for _, item := range items {
		j := byID[item.ID]
		switch j.Decision {
		case types.DecisionApprove:
			status, warns, err := g.StoreDirect(ctx, item)
			warnings = append(warnings, warns...)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("storing %q: %v", item.Title, err))
				continue
			}
			if status == types.StatusApproved {
				approved++
			}
		case types.DecisionReject:
			rejected++
		default:
			status, warns, err := g.QueueOrApprove(ctx, item, p.ApprovalMode)
			warnings = append(warnings, warns...)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("queueing %q: %v", item.Title, err))
				continue
			}
			if status == types.StatusApproved {
				approved++
			} else if status == types.StatusPending {
				queued++
			}
		}
	}
	return approved, queued, rejected, warnings
}

// gathererHandle is the slice of the gatherer surface orchestration uses;
// tests inject fakes.
type gathererHandle interface {
	StoreDirect(ctx context.Context, item types.CollectedItem) (types.ItemStatus, []string, error)
	QueueOrApprove(ctx context.Context, item types.CollectedItem, mode types.ApprovalMode) (types.ItemStatus, []string, error)
}
