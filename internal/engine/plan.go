package engine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
)

// Task argument names surfaced on the run's task nodes.
const (
	ArgSource = "source"
	ArgURL    = "url"
	ArgObject = "object"
	ArgInput  = "input"
)

// BuildPlan materialises the data_extraction graph for a run: one
// retrieve node, a download/extract pair per source input, a pooling
// barrier, one process node per input, and a final pooling node. The
// graph shape is fixed; only its width varies with the source locator.
func BuildPlan(run domain.Run) ([]domain.TaskNode, error) {
	urls, objects := ingest.SourceURLs(run.Config.Source)
	if len(urls)+len(objects) == 0 {
		return nil, fmt.Errorf("%w: source locator names no inputs", domain.ErrInvalidConfig)
	}

	retrieve := domain.TaskNode{
		ID:     uuid.NewString(),
		RunID:  run.ID,
		Name:   "retrieve source",
		Type:   domain.TaskTypeRetrieve,
		Status: domain.TaskStatusPending,
		Arguments: []domain.TaskArgument{
			{Name: ArgSource, Value: run.Config.Source},
		},
	}
	nodes := []domain.TaskNode{retrieve}

	type input struct {
		stem string
		arg  domain.TaskArgument
	}
	inputs := make([]input, 0, len(urls)+len(objects))
	for _, u := range urls {
		inputs = append(inputs, input{stem: ingest.FileStem(u), arg: domain.TaskArgument{Name: ArgURL, Value: u}})
	}
	for _, obj := range objects {
		inputs = append(inputs, input{stem: ingest.FileStem(obj), arg: domain.TaskArgument{Name: ArgObject, Value: obj}})
	}

	extractIDs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		download := domain.TaskNode{
			ID:          uuid.NewString(),
			RunID:       run.ID,
			Name:        "download " + in.stem,
			Type:        domain.TaskTypeDownload,
			Status:      domain.TaskStatusPending,
			UpstreamIDs: []string{retrieve.ID},
			Arguments: []domain.TaskArgument{
				{Name: ArgInput, Value: in.stem},
				in.arg,
			},
		}
		extract := domain.TaskNode{
			ID:          uuid.NewString(),
			RunID:       run.ID,
			Name:        "extract " + in.stem,
			Type:        domain.TaskTypeExtract,
			Status:      domain.TaskStatusPending,
			UpstreamIDs: []string{download.ID},
			Arguments: []domain.TaskArgument{
				{Name: ArgInput, Value: in.stem},
			},
		}
		nodes = append(nodes, download, extract)
		extractIDs = append(extractIDs, extract.ID)
	}

	poolFiles := domain.TaskNode{
		ID:          uuid.NewString(),
		RunID:       run.ID,
		Name:        "pool files",
		Type:        domain.TaskTypePool,
		Status:      domain.TaskStatusPending,
		UpstreamIDs: extractIDs,
	}
	nodes = append(nodes, poolFiles)

	processIDs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		process := domain.TaskNode{
			ID:          uuid.NewString(),
			RunID:       run.ID,
			Name:        "process " + in.stem,
			Type:        domain.TaskTypeProcess,
			Status:      domain.TaskStatusPending,
			UpstreamIDs: []string{poolFiles.ID},
			Arguments: []domain.TaskArgument{
				{Name: ArgInput, Value: in.stem},
			},
		}
		nodes = append(nodes, process)
		processIDs = append(processIDs, process.ID)
	}

	poolResults := domain.TaskNode{
		ID:          uuid.NewString(),
		RunID:       run.ID,
		Name:        "pool results",
		Type:        domain.TaskTypePool,
		Status:      domain.TaskStatusPending,
		UpstreamIDs: processIDs,
	}
	nodes = append(nodes, poolResults)

	if _, err := TopoOrder(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// TopoOrder returns the nodes in a deterministic topological order,
// breaking ties by node name then id. A cycle or an edge to an unknown
// node aborts run construction.
func TopoOrder(nodes []domain.TaskNode) ([]domain.TaskNode, error) {
	byID := make(map[string]domain.TaskNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	inDegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		inDegree[node.ID] += 0
		for _, up := range node.UpstreamIDs {
			if _, ok := byID[up]; !ok {
				return nil, fmt.Errorf("%w: task %q depends on unknown task %q", domain.ErrInternalInconsistency, node.Name, up)
			}
			adj[up] = append(adj[up], node.ID)
			inDegree[node.ID]++
		}
	}

	less := func(a, b string) bool {
		na, nb := byID[a], byID[b]
		if na.Name != nb.Name {
			return na.Name < nb.Name
		}
		return na.ID < nb.ID
	}

	ready := make([]string, 0, len(nodes))
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })

	ordered := make([]domain.TaskNode, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
				sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
			}
		}
	}

	if len(ordered) != len(nodes) {
		return nil, fmt.Errorf("%w: dependency graph contains a cycle", domain.ErrInternalInconsistency)
	}
	return ordered, nil
}

func taskArgument(node *domain.TaskNode, name string) (string, bool) {
	for _, arg := range node.Arguments {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return "", false
}
