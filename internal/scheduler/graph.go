package scheduler

import (
	"fmt"

	"github.com/gammazero/toposort"
)

// depTracker maps unmet prerequisite IDs to their dependents and promotes a
// task to ready once its waiting set drains. It is not internally locked;
// the owning Scheduler's mutex guards all access.
type depTracker struct {
	waiting    map[string]map[string]struct{} // taskID -> unmet dependency IDs
	dependents map[string][]string            // dependency ID -> waiting task IDs
}

func newDepTracker() *depTracker {
	return &depTracker{
		waiting:    make(map[string]map[string]struct{}),
		dependents: make(map[string][]string),
	}
}

// add registers a pending task with its currently unmet dependencies.
func (d *depTracker) add(taskID string, unmet []string) {
	set := make(map[string]struct{}, len(unmet))
	for _, dep := range unmet {
		set[dep] = struct{}{}
		d.dependents[dep] = append(d.dependents[dep], taskID)
	}
	d.waiting[taskID] = set
}

// remove forgets a task entirely, e.g. on cancellation.
func (d *depTracker) remove(taskID string) {
	for dep := range d.waiting[taskID] {
		d.dependents[dep] = dropID(d.dependents[dep], taskID)
	}
	delete(d.waiting, taskID)
}

// satisfy records that depID completed successfully and returns the IDs of
// tasks whose waiting sets became empty.
func (d *depTracker) satisfy(depID string) []string {
	var promoted []string
	for _, taskID := range d.dependents[depID] {
		set, ok := d.waiting[taskID]
		if !ok {
			continue
		}
		delete(set, depID)
		if len(set) == 0 {
			delete(d.waiting, taskID)
			promoted = append(promoted, taskID)
		}
	}
	delete(d.dependents, depID)
	return promoted
}

// block records that depID reached a non-completed terminal status and
// returns every task that is now transitively unreachable. The returned
// tasks are removed from the tracker.
func (d *depTracker) block(depID string) []string {
	var blocked []string
	frontier := []string{depID}
	seen := map[string]struct{}{depID: {}}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for _, dependent := range d.dependents[id] {
			if _, dup := seen[dependent]; dup {
				continue
			}
			seen[dependent] = struct{}{}
			if _, ok := d.waiting[dependent]; ok {
				blocked = append(blocked, dependent)
				frontier = append(frontier, dependent)
			}
		}
		delete(d.dependents, id)
	}
	for _, id := range blocked {
		d.remove(id)
	}
	return blocked
}

// pendingCount returns the number of tasks still waiting on dependencies.
func (d *depTracker) pendingCount() int {
	return len(d.waiting)
}

// validateGraph runs a topological sort over the live dependency graph plus
// the candidate task. A sort failure means the submission would create a
// cycle; it is rejected before the task enters the pending set.
func validateGraph(tasks map[string]*Task, candidateID string, candidateDeps []string) error {
	var edges []toposort.Edge
	for id, t := range tasks {
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, dep := range t.DependsOn {
			edges = append(edges, toposort.Edge{dep, id})
		}
	}
	if len(candidateDeps) == 0 {
		edges = append(edges, toposort.Edge{nil, candidateID})
	}
	for _, dep := range candidateDeps {
		edges = append(edges, toposort.Edge{dep, candidateID})
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("topological sort failed: %w", err)
	}
	return nil
}

func dropID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
